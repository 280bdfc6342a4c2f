package studygroup

// SetJoinCodeFunc swaps the join code generator and returns a func restoring it.
func SetJoinCodeFunc(f func() (string, error)) (restore func()) {
	orig := joinCodeFunc
	joinCodeFunc = f
	return func() { joinCodeFunc = orig }
}

const MaxJoinCodeAttempts = maxJoinCodeAttempts
