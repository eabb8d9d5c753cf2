package domain

import "time"

// Clock abstrai o relógio de parede para que a janela deslizante possa ser
// testada sem sleeps.
type Clock interface {
	Now() time.Time
}
