package andycoin

import (
	"math"
	"os"
)

func Touch(path string) error {
	_, err := os.Stat(path)
	if os.IsNotExist(err) {
		file, err := os.Create(path)
		if err != nil {
			return err
		}
		defer file.Close()
	}
	return nil
}

// ApplyDelta applies a signed change to a balance with checked arithmetic.
func ApplyDelta(balance uint64, delta int64) (uint64, error) {
	if delta >= 0 {
		d := uint64(delta)
		if balance > math.MaxUint64-d {
			return balance, Errorf(ErrOverflow, "%d + %d", balance, d)
		}
		return balance + d, nil
	}
	// -(delta+1)+1 so that MinInt64 does not overflow on negation
	d := uint64(-(delta + 1)) + 1
	if d > balance {
		return balance, Errorf(ErrUnderflow, "%d - %d", balance, d)
	}
	return balance - d, nil
}

// SaturatingAdd adds without wrapping, pinning at MaxUint64.
func SaturatingAdd(a, b uint64) uint64 {
	if a > math.MaxUint64-b {
		return math.MaxUint64
	}
	return a + b
}

// Contains checks if a slice contains a role
func Contains(s []RoleID, e RoleID) bool {
	for _, a := range s {
		if a == e {
			return true
		}
	}
	return false
}
