package harness

import (
	"errors"

	"github.com/roach88/stm/internal/stm"
)

// ErrStepFailed is wrapped by the error of a fail step.
var ErrStepFailed = errors.New("step failed")

// stepError is the typed failure raised by a fail step.
type stepError struct {
	label   string
	message string
}

func (e *stepError) Error() string {
	return e.label + ": " + e.message
}

func (e *stepError) Unwrap() error {
	return ErrStepFailed
}

// cellSet maps scenario cell names to their transactional cells.
type cellSet map[string]*stm.TRef[int64]

// buildProgram compiles a transaction into one program. The program's
// value is the last value read by a read or require step, 0 if none.
func buildProgram(cells cellSet, tx Transaction) stm.STM[int64] {
	main := buildSteps(cells, tx.Label, tx.Steps)

	switch {
	case len(tx.OrElse) > 0:
		return stm.OrElse(main, func() stm.STM[int64] {
			return buildSteps(cells, tx.Label, tx.OrElse)
		})
	case len(tx.OrTry) > 0:
		return stm.OrTry(main, func() stm.STM[int64] {
			return buildSteps(cells, tx.Label, tx.OrTry)
		})
	default:
		return main
	}
}

func buildSteps(cells cellSet, label string, steps []Step) stm.STM[int64] {
	p := stm.Succeed(int64(0))
	for _, step := range steps {
		p = stm.FlatMap(p, func(last int64) stm.STM[int64] {
			return buildStep(cells, label, step, last)
		})
	}
	return p
}

func buildStep(cells cellSet, label string, step Step, last int64) stm.STM[int64] {
	ref := cells[step.Cell]

	switch step.Op {
	case OpRead:
		return ref.Get()
	case OpRequire:
		return stm.RetryUntil(ref.Get(), func(v int64) bool { return v >= *step.Min })
	case OpRequireMax:
		return stm.RetryUntil(ref.Get(), func(v int64) bool { return v <= *step.Max })
	case OpAdd:
		return stm.As(ref.Update(func(v int64) int64 { return v + step.Delta }), last)
	case OpSet:
		return stm.As(ref.Set(step.Value), last)
	case OpFail:
		return stm.Fail[int64](&stepError{label: label, message: messageOr(step.Message, "failed")})
	case OpDie:
		return stm.DieMessage[int64](messageOr(step.Message, label+": died"))
	case OpRetry:
		return stm.Retry[int64]()
	default:
		// Rejected by validateScenario.
		return stm.DieMessage[int64]("unknown op " + step.Op)
	}
}

func messageOr(msg, fallback string) string {
	if msg == "" {
		return fallback
	}
	return msg
}
