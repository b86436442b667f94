package wishlist

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"sync"

	"github.com/jose-valero/mudae-claim-bot/internal/app/parser"
	"github.com/jose-valero/mudae-claim-bot/internal/domain"
)

// entrada cruda del documento JSON; se decodifica entry por entry para
// poder saltar las malformadas sin tirar todo el archivo
type rawEntry struct {
	Name     string      `json:"name"`
	Series   string      `json:"series"`
	Priority json.Number `json:"priority"`
	Notes    string      `json:"notes"`
	Aliases  []string    `json:"aliases"`
}

// Matcher mantiene el set de entries y resuelve el mejor match para un
// drop. La carga reemplaza el set completo (no hay merge).
type Matcher struct {
	mu        sync.RWMutex
	entries   []domain.WishlistEntry
	threshold float64
	fuzzy     bool
}

func NewMatcher(threshold float64, fuzzy bool) *Matcher {
	if threshold < 0 || threshold > 1 {
		clamped := min(max(threshold, 0), 1)
		log.Printf("⚠️ fuzzy_threshold %.2f fuera de [0,1], clampeado a %.2f", threshold, clamped)
		threshold = clamped
	}
	return &Matcher{threshold: threshold, fuzzy: fuzzy}
}

// LoadFile lee el documento de wishlist y reemplaza el set en memoria.
// Devuelve cuántas entries cargó y cuántas salteó por malformadas.
func (m *Matcher) LoadFile(path string) (loaded, skipped int, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, 0, fmt.Errorf("wishlist read: %w", err)
	}
	return m.LoadJSON(data)
}

func (m *Matcher) LoadJSON(data []byte) (loaded, skipped int, err error) {
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return 0, 0, fmt.Errorf("wishlist parse: %w", err)
	}

	entries := make([]domain.WishlistEntry, 0, len(raws))
	// unicidad por (name, series) normalizados; la última carga gana
	seen := map[[2]string]int{}

	for i, r := range raws {
		var re rawEntry
		if err := json.Unmarshal(r, &re); err != nil {
			log.Printf("⚠️ wishlist: entry %d malformada, salteada: %v", i, err)
			skipped++
			continue
		}
		if re.Name == "" {
			log.Printf("⚠️ wishlist: entry %d sin nombre, salteada", i)
			skipped++
			continue
		}
		prio := 0
		if re.Priority != "" {
			p, err := re.Priority.Int64()
			if err != nil {
				log.Printf("⚠️ wishlist: entry %q con priority no numérica, salteada", re.Name)
				skipped++
				continue
			}
			prio = int(p)
		}

		e := domain.WishlistEntry{
			Name:     parser.Normalize(re.Name),
			Series:   parser.Normalize(re.Series),
			RawName:  re.Name,
			Priority: prio,
			Notes:    re.Notes,
		}
		for _, a := range re.Aliases {
			if n := parser.Normalize(a); n != "" {
				e.Aliases = append(e.Aliases, n)
			}
		}

		key := [2]string{e.Name, e.Series}
		if j, ok := seen[key]; ok {
			entries[j] = e // conserva la posición original para el tie-break
			continue
		}
		seen[key] = len(entries)
		entries = append(entries, e)
	}

	m.mu.Lock()
	m.entries = entries
	m.mu.Unlock()
	return len(entries), skipped, nil
}

// Replace pone un set ya normalizado (para tests y recargas internas).
func (m *Matcher) Replace(entries []domain.WishlistEntry) {
	m.mu.Lock()
	m.entries = entries
	m.mu.Unlock()
}

func (m *Matcher) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

type Match struct {
	Entry domain.WishlistEntry
	Score float64
}

// Match devuelve a lo sumo un match: el candidato (score >= threshold)
// con menor priority, luego mayor score, luego primero insertado.
func (m *Matcher) Match(drop domain.DropEvent) (Match, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	best := Match{}
	found := false

	for _, e := range m.entries {
		score := m.entryScore(e, drop)
		if score < m.threshold {
			continue
		}
		if !found ||
			e.Priority < best.Entry.Priority ||
			(e.Priority == best.Entry.Priority && score > best.Score) {
			best = Match{Entry: e, Score: score}
			found = true
		}
	}
	return best, found
}

func (m *Matcher) entryScore(e domain.WishlistEntry, drop domain.DropEvent) float64 {
	// si la entry tiene serie y el drop también, la serie tiene que pasar
	// el mismo umbral; una entry sin serie matchea cualquier serie
	if e.Series != "" && drop.Series != "" {
		if m.similarity(e.Series, drop.Series) < m.threshold {
			return 0
		}
	}

	score := m.similarity(e.Name, drop.Name)
	for _, a := range e.Aliases {
		if s := m.similarity(a, drop.Name); s > score {
			score = s
		}
	}
	return score
}

func (m *Matcher) similarity(a, b string) float64 {
	if !m.fuzzy {
		if a == b {
			return 1
		}
		return 0
	}
	return Similarity(a, b)
}
