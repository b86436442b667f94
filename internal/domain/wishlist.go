package domain

// WishlistEntry ya viene normalizada desde el loader.
// Unicidad por (Name, Series); en conflicto gana la última carga.
type WishlistEntry struct {
	Name     string // normalizado
	Series   string // normalizado, puede ser vacío
	RawName  string
	Priority int // menor = más importante
	Notes    string
	Aliases  []string // normalizados
}

// StatsCounters son monotónicos; sólo se decrementan en un reset explícito.
type StatsCounters struct {
	Rolled        uint64
	RollsExecuted uint64
	Matched       uint64
	Claimed       uint64
	Kakera        uint64
	UptimeSeconds uint64
	LastDailyAt   int64 // unix, 0 si nunca corrió el daily
}
