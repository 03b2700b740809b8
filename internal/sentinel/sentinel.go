package sentinel

// Guardian wraps a delivery or processing error with a permanence flag.
// Permanent errors must never be retried.
type Guardian struct {
	Permanent bool
	Context   string
}

func (g Guardian) Error() string {
	return g.Context
}

func NewGuardian(permanent bool, context string) Guardian {
	return Guardian{
		Permanent: permanent,
		Context:   context,
	}
}

func IsPermanent(err error) bool {
	g, ok := err.(Guardian)
	if !ok {
		return false
	}

	return g.Permanent
}
