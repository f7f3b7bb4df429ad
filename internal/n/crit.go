package n

// AlertCriteria is an utility that allows us to specify a matching criteria to
// a specific Alert
type AlertCriteria func(Alert) bool

// EAnd joins a slice of AlertCriteria with an and statement
func EAnd(crits ...AlertCriteria) AlertCriteria {
	return func(a Alert) bool {
		result := true
		for _, crit := range crits {
			result = result && crit(a)
			if !result {
				return result
			}
		}
		return result
	}
}

// EOr joins a slice of AlertCriteria with an or statement
func EOr(crits ...AlertCriteria) AlertCriteria {
	return func(a Alert) bool {
		result := false
		for _, crit := range crits {
			result = result || crit(a)
			if result {
				return result
			}
		}
		return result
	}
}

// ENot negates the result from a given AlertCriteria
func ENot(crit AlertCriteria) AlertCriteria {
	return func(a Alert) bool {
		return !crit(a)
	}
}

// EAny matches every Alert
var EAny AlertCriteria = func(Alert) bool {
	return true
}

// EIsKind returns true if the alert has one of the given kinds
func EIsKind(kinds ...Kind) AlertCriteria {
	return func(a Alert) bool {
		for _, k := range kinds {
			if a.Kind == k {
				return true
			}
		}
		return false
	}
}

// EIsRemediation returns true if the alert reports a remediation outcome
var EIsRemediation = EIsKind(Restarted, RestartFailed)

// EForService returns true if the alert was created for the given service
func EForService(name string) AlertCriteria {
	return func(a Alert) bool {
		return a.ServiceName == name
	}
}
