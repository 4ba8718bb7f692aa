package stm

// FlatMap sequences p and the program f builds from its result.
func FlatMap[A, B any](p STM[A], f func(A) STM[B]) STM[B] {
	return STM[B]{n: flatMapNode(p.n, func(v any) *node {
		return f(cast[A](v)).n
	})}
}

// Map transforms the result of p.
func Map[A, B any](p STM[A], f func(A) B) STM[B] {
	return STM[B]{n: flatMapNode(p.n, func(v any) *node {
		return succeedNode(f(cast[A](v)))
	})}
}

// As replaces the result of p with b.
func As[A, B any](p STM[A], b B) STM[B] {
	return STM[B]{n: flatMapNode(p.n, func(any) *node {
		return succeedNode(b)
	})}
}

// Discard drops the result of p.
func Discard[A any](p STM[A]) STM[struct{}] {
	return As(p, struct{}{})
}

// Pair holds the results of Zip.
type Pair[A, B any] struct {
	First  A
	Second B
}

// ZipWith runs p then q and combines their results.
func ZipWith[A, B, C any](p STM[A], q STM[B], f func(A, B) C) STM[C] {
	return FlatMap(p, func(a A) STM[C] {
		return Map(q, func(b B) C { return f(a, b) })
	})
}

// Zip runs p then q and pairs their results.
func Zip[A, B any](p STM[A], q STM[B]) STM[Pair[A, B]] {
	return ZipWith(p, q, func(a A, b B) Pair[A, B] {
		return Pair[A, B]{First: a, Second: b}
	})
}

// ZipRight runs p then q, keeping q's result.
func ZipRight[A, B any](p STM[A], q STM[B]) STM[B] {
	return STM[B]{n: flatMapNode(p.n, func(any) *node { return q.n })}
}

// ZipLeft runs p then q, keeping p's result.
func ZipLeft[A, B any](p STM[A], q STM[B]) STM[A] {
	return FlatMap(p, func(a A) STM[A] { return As(q, a) })
}

// CatchAll recovers from any failure of p. Defects, interruptions and
// retries are not failures and pass through untouched.
func CatchAll[A any](p STM[A], h func(error) STM[A]) STM[A] {
	return STM[A]{n: catchNode(p.n, func(err error) *node {
		return h(err).n
	})}
}

// CatchSome recovers from the failures h accepts; other failures propagate.
func CatchSome[A any](p STM[A], h func(error) (STM[A], bool)) STM[A] {
	return STM[A]{n: catchNode(p.n, func(err error) *node {
		if recovered, ok := h(err); ok {
			return recovered.n
		}
		return failNode(func() error { return err })
	})}
}

// MapError transforms the failure of p.
func MapError[A any](p STM[A], f func(error) error) STM[A] {
	return STM[A]{n: catchNode(p.n, func(err error) *node {
		return failNode(func() error { return f(err) })
	})}
}

// OrTry runs p; if p retries, its journal writes are rolled back and that
// runs instead. Failures of p propagate.
func OrTry[A any](p STM[A], that func() STM[A]) STM[A] {
	return WithRuntime(func(d *Driver) STM[A] {
		restore := d.journal.checkpoint()
		return STM[A]{n: onRetryNode(p.n, func() *node {
			restore()
			return that().n
		})}
	})
}

// orElseFallback marks that the first branch of OrElse gave up.
type orElseFallback struct{}

// OrElse runs p; if p fails or retries, its journal writes are rolled back
// and that runs instead. The alternative runs outside p's handlers, so its
// own failure or retry propagates normally.
func OrElse[A any](p STM[A], that func() STM[A]) STM[A] {
	return WithRuntime(func(d *Driver) STM[A] {
		restore := d.journal.checkpoint()
		fallback := func() *node { return succeedNode(orElseFallback{}) }

		guarded := onRetryNode(
			catchNode(p.n, func(error) *node { return fallback() }),
			fallback,
		)
		return STM[A]{n: flatMapNode(guarded, func(v any) *node {
			if _, ok := v.(orElseFallback); ok {
				restore()
				return that().n
			}
			return succeedNode(v)
		})}
	})
}

// OrElseSucceed runs p, producing f() if p fails or retries.
func OrElseSucceed[A any](p STM[A], f func() A) STM[A] {
	return OrElse(p, func() STM[A] { return Sync(f) })
}

// FoldSTM continues with onFailure or onSuccess depending on p's outcome.
func FoldSTM[A, B any](p STM[A], onFailure func(error) STM[B], onSuccess func(A) STM[B]) STM[B] {
	return STM[B]{n: foldNode(p.n,
		func(err error) *node { return onFailure(err).n },
		func(v any) *node { return onSuccess(cast[A](v)).n },
	)}
}

// Fold maps both outcomes of p to a value.
func Fold[A, B any](p STM[A], onFailure func(error) B, onSuccess func(A) B) STM[B] {
	return FoldSTM(p,
		func(err error) STM[B] { return Succeed(onFailure(err)) },
		func(a A) STM[B] { return Succeed(onSuccess(a)) },
	)
}

// Ensuring runs finalizer after p succeeds or fails. It does not run when
// p dies, is interrupted or retries.
func Ensuring[A, F any](p STM[A], finalizer STM[F]) STM[A] {
	return STM[A]{n: ensuringNode(p.n, finalizer.n)}
}

// Result is a failure captured as a value by Attempt.
type Result[A any] struct {
	Value A
	Err   error
}

// Attempt moves the failure of p into the result.
func Attempt[A any](p STM[A]) STM[Result[A]] {
	return Fold(p,
		func(err error) Result[A] { return Result[A]{Err: err} },
		func(a A) Result[A] { return Result[A]{Value: a} },
	)
}

// Absolve is the inverse of Attempt.
func Absolve[A any](p STM[Result[A]]) STM[A] {
	return FlatMap(p, func(r Result[A]) STM[A] {
		if r.Err != nil {
			return Fail[A](r.Err)
		}
		return Succeed(r.Value)
	})
}

// Check retries unless cond holds.
func Check(cond bool) STM[struct{}] {
	if cond {
		return Unit()
	}
	return Retry[struct{}]()
}

// CheckWith evaluates pred on every attempt and retries unless it holds.
func CheckWith(pred func() bool) STM[struct{}] {
	return Suspend(func() STM[struct{}] { return Check(pred()) })
}

// RetryUntil retries until p's result satisfies pred.
func RetryUntil[A any](p STM[A], pred func(A) bool) STM[A] {
	return FlatMap(p, func(a A) STM[A] {
		if pred(a) {
			return Succeed(a)
		}
		return Retry[A]()
	})
}

// RetryWhile retries while p's result satisfies pred.
func RetryWhile[A any](p STM[A], pred func(A) bool) STM[A] {
	return RetryUntil(p, func(a A) bool { return !pred(a) })
}

// ForEach runs f over items in order and collects the results.
func ForEach[A, B any](items []A, f func(A) STM[B]) STM[[]B] {
	return Suspend(func() STM[[]B] {
		out := make([]B, 0, len(items))
		var loop func(i int) STM[[]B]
		loop = func(i int) STM[[]B] {
			if i == len(items) {
				return Succeed(out)
			}
			return FlatMap(f(items[i]), func(b B) STM[[]B] {
				out = append(out, b)
				return loop(i + 1)
			})
		}
		return loop(0)
	})
}

// ForEachDiscard runs f over items in order, dropping the results.
func ForEachDiscard[A, B any](items []A, f func(A) STM[B]) STM[struct{}] {
	var loop func(i int) STM[struct{}]
	loop = func(i int) STM[struct{}] {
		if i == len(items) {
			return Unit()
		}
		return ZipRight(f(items[i]), Suspend(func() STM[struct{}] { return loop(i + 1) }))
	}
	return Suspend(func() STM[struct{}] { return loop(0) })
}

// Loop runs body for every state from initial while cont holds, stepping
// with inc, and collects the results.
func Loop[S, A any](initial S, cont func(S) bool, inc func(S) S, body func(S) STM[A]) STM[[]A] {
	return Suspend(func() STM[[]A] {
		var out []A
		var loop func(s S) STM[[]A]
		loop = func(s S) STM[[]A] {
			if !cont(s) {
				return Succeed(out)
			}
			return FlatMap(body(s), func(a A) STM[[]A] {
				out = append(out, a)
				return loop(inc(s))
			})
		}
		return loop(initial)
	})
}

// Iterate threads a state through body while cont holds.
func Iterate[S any](initial S, cont func(S) bool, body func(S) STM[S]) STM[S] {
	var loop func(s S) STM[S]
	loop = func(s S) STM[S] {
		if !cont(s) {
			return Succeed(s)
		}
		return FlatMap(body(s), loop)
	}
	return Suspend(func() STM[S] { return loop(initial) })
}
