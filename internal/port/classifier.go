package port

// IncidentClassifier decides whether generated text describes an incident.
type IncidentClassifier interface {
	Classify(text string) bool
}

// ClassifierFunc adapts a plain predicate to IncidentClassifier.
type ClassifierFunc func(text string) bool

func (f ClassifierFunc) Classify(text string) bool { return f(text) }
