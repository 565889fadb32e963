package feeds

import "time"

type State string

const (
	StateNotConnected State = "not_connected"
	StateSyncing      State = "syncing"
	StateConnected    State = "connected"
	StateDegraded     State = "degraded"
)

// Result is the outcome of a best-effort feed refresh. A Degraded result
// still carries the last good data; NotConnected carries none.
type Result[T any] struct {
	State     State     `json:"state"`
	Data      T         `json:"data"`
	FetchedAt time.Time `json:"fetchedAt"`
	Err       error     `json:"-"`
}

func Connected[T any](data T, at time.Time) Result[T] {
	return Result[T]{State: StateConnected, Data: data, FetchedAt: at}
}

func Degraded[T any](cached T, at time.Time, err error) Result[T] {
	return Result[T]{State: StateDegraded, Data: cached, FetchedAt: at, Err: err}
}

func NotConnected[T any](err error) Result[T] {
	return Result[T]{State: StateNotConnected, Err: err}
}

// Usable reports whether the result carries data, fresh or cached.
func (r Result[T]) Usable() bool {
	return r.State == StateConnected || r.State == StateDegraded
}
