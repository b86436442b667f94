package wishlist

import (
	"testing"

	"github.com/jose-valero/mudae-claim-bot/internal/domain"
)

func drop(name, series string) domain.DropEvent {
	return domain.DropEvent{Name: name, Series: series}
}

func TestSimilarity(t *testing.T) {
	cases := []struct {
		a, b string
		want float64
	}{
		{"rem", "rem", 1},
		{"", "", 1},
		{"rem", "ram", 1 - 1.0/3},
		{"megumin", "megumi", 1 - 1.0/7},
		{"rem", "", 0},
	}
	for _, c := range cases {
		if got := Similarity(c.a, c.b); !almostEq(got, c.want) {
			t.Errorf("Similarity(%q,%q) = %v, quería %v", c.a, c.b, got, c.want)
		}
		// simétrica
		if Similarity(c.a, c.b) != Similarity(c.b, c.a) {
			t.Errorf("Similarity(%q,%q) no es simétrica", c.a, c.b)
		}
	}
}

func almostEq(a, b float64) bool {
	d := a - b
	return d < 1e-9 && d > -1e-9
}

func TestMatchExactAndFuzzy(t *testing.T) {
	m := NewMatcher(0.8, true)
	m.Replace([]domain.WishlistEntry{
		{Name: "rem", Series: "re zero", RawName: "Rem"},
		{Name: "emilia", RawName: "Emilia"},
	})

	if match, ok := m.Match(drop("rem", "re zero")); !ok || match.Entry.Name != "rem" || match.Score != 1 {
		t.Fatalf("exacto: ok=%v match=%+v", ok, match)
	}
	// typo dentro del umbral: emilia/emilie = 1 - 1/6
	if match, ok := m.Match(drop("emilie", "")); !ok || match.Entry.Name != "emilia" {
		t.Fatalf("fuzzy: ok=%v match=%+v", ok, match)
	}
	// lejos del umbral: rem/ram = 0.67
	if _, ok := m.Match(drop("ram", "re zero")); ok {
		t.Fatal("ram no debería matchear rem con umbral 0.8")
	}
}

func TestMatchAliases(t *testing.T) {
	m := NewMatcher(0.8, true)
	m.Replace([]domain.WishlistEntry{
		{Name: "asuna", RawName: "Asuna", Aliases: []string{"asuna yuuki"}},
	})
	if match, ok := m.Match(drop("asuna yuuki", "")); !ok || match.Score != 1 {
		t.Fatalf("el alias exacto tiene que dar score 1: ok=%v score=%v", ok, match.Score)
	}
}

func TestMatchSeriesGate(t *testing.T) {
	m := NewMatcher(0.8, true)
	m.Replace([]domain.WishlistEntry{
		{Name: "saber", Series: "fate", RawName: "Saber"},
		{Name: "chris", RawName: "Chris"}, // sin serie: matchea cualquiera
	})

	if _, ok := m.Match(drop("saber", "konosuba")); ok {
		t.Fatal("serie distinta tiene que bloquear el match")
	}
	if _, ok := m.Match(drop("saber", "fate")); !ok {
		t.Fatal("misma serie tiene que pasar")
	}
	if _, ok := m.Match(drop("chris", "konosuba")); !ok {
		t.Fatal("entry sin serie tiene que matchear cualquier serie")
	}
}

func TestMatchPriorityBeatsScore(t *testing.T) {
	m := NewMatcher(0.8, true)
	m.Replace([]domain.WishlistEntry{
		{Name: "megumin", RawName: "Megumin", Priority: 2},
		{Name: "megumi", RawName: "Megumi", Priority: 1},
	})

	// los dos pasan el umbral con "megumin"; gana la priority más baja
	// aunque su score sea menor
	match, ok := m.Match(drop("megumin", ""))
	if !ok {
		t.Fatal("esperaba match")
	}
	if match.Entry.Name != "megumi" {
		t.Errorf("ganó %q, quería megumi (priority 1)", match.Entry.Name)
	}

	// con la misma priority desempata el score
	m.Replace([]domain.WishlistEntry{
		{Name: "megumin", RawName: "Megumin", Priority: 1},
		{Name: "megumi", RawName: "Megumi", Priority: 1},
	})
	match, _ = m.Match(drop("megumin", ""))
	if match.Entry.Name != "megumin" {
		t.Errorf("ganó %q, quería megumin (score 1.0)", match.Entry.Name)
	}
}

func TestMatchFuzzyDisabled(t *testing.T) {
	m := NewMatcher(0.8, false)
	m.Replace([]domain.WishlistEntry{{Name: "emilia", RawName: "Emilia"}})

	if _, ok := m.Match(drop("emilie", "")); ok {
		t.Fatal("sin fuzzy sólo vale igualdad exacta")
	}
	if _, ok := m.Match(drop("emilia", "")); !ok {
		t.Fatal("igualdad exacta tiene que matchear")
	}
}

func TestLoadJSONSkipsMalformed(t *testing.T) {
	doc := `[
		{"name": "Rem", "series": "Re:Zero", "priority": 1},
		{"series": "sin nombre"},
		{"name": "Asuna", "priority": "alta"},
		{"name": "Emilia", "aliases": ["Emilia-tan", ""]}
	]`
	m := NewMatcher(0.8, true)
	loaded, skipped, err := m.LoadJSON([]byte(doc))
	if err != nil {
		t.Fatal(err)
	}
	if loaded != 2 || skipped != 2 {
		t.Errorf("loaded=%d skipped=%d, quería 2/2", loaded, skipped)
	}
	if match, ok := m.Match(drop("emilia tan", "")); !ok || match.Entry.RawName != "Emilia" {
		t.Errorf("el alias normalizado tendría que matchear: ok=%v", ok)
	}
}

func TestLoadJSONDedupesByNameSeries(t *testing.T) {
	doc := `[
		{"name": "Rem", "series": "Re:Zero", "priority": 5},
		{"name": "rem", "series": "re zero", "priority": 1}
	]`
	m := NewMatcher(0.8, true)
	loaded, _, err := m.LoadJSON([]byte(doc))
	if err != nil {
		t.Fatal(err)
	}
	if loaded != 1 {
		t.Fatalf("loaded=%d, el duplicado tenía que colapsar", loaded)
	}
	match, ok := m.Match(drop("rem", "re zero"))
	if !ok || match.Entry.Priority != 1 {
		t.Errorf("tiene que ganar la última carga: %+v", match.Entry)
	}
}

func TestLoadJSONBadDocument(t *testing.T) {
	m := NewMatcher(0.8, true)
	if _, _, err := m.LoadJSON([]byte(`{"no": "es una lista"}`)); err == nil {
		t.Fatal("un documento que no es lista tiene que fallar")
	}
}
