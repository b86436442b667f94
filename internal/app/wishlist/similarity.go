package wishlist

import "github.com/agnivade/levenshtein"

// Similarity es distancia de edición normalizada: 1 - dist/max(len).
// Simétrica, acotada en [0,1] y 1.0 sólo con igualdad exacta. La métrica
// es una estrategia reemplazable, no un contrato del matcher.
func Similarity(a, b string) float64 {
	if a == b {
		return 1
	}
	la, lb := len([]rune(a)), len([]rune(b))
	longest := la
	if lb > longest {
		longest = lb
	}
	if longest == 0 {
		return 1
	}
	d := levenshtein.ComputeDistance(a, b)
	return 1 - float64(d)/float64(longest)
}
