package contracts

// Clone returns a copy of r that shares no maps, slices or pointers with it
func (r CompositeResult) Clone() CompositeResult {
	out := r
	if r.Estimates != nil {
		out.Estimates = make(map[Method]Estimate, len(r.Estimates))
		for m, e := range r.Estimates {
			out.Estimates[m] = e.Clone()
		}
	}
	if r.Integration != nil {
		integration := r.Integration.Clone()
		out.Integration = &integration
	}
	if r.Completion != nil {
		completion := *r.Completion
		if r.Completion.ActualCompletionDate != nil {
			date := *r.Completion.ActualCompletionDate
			completion.ActualCompletionDate = &date
		}
		out.Completion = &completion
	}
	if r.Artifacts != nil {
		artifacts := Artifacts{}
		if r.Artifacts.Burndown != nil {
			artifacts.Burndown = append([]BurndownPoint{}, r.Artifacts.Burndown...)
		}
		out.Artifacts = &artifacts
	}
	return out
}

// Clone copies the estimate and its method details
func (e Estimate) Clone() Estimate {
	if e.MethodDetails == nil {
		return e
	}
	details := make(map[string]interface{}, len(e.MethodDetails))
	for k, v := range e.MethodDetails {
		if nested, ok := v.(map[string]float64); ok {
			cp := make(map[string]float64, len(nested))
			for nk, nv := range nested {
				cp[nk] = nv
			}
			v = cp
		}
		details[k] = v
	}
	e.MethodDetails = details
	return e
}

// Clone copies the integration result
func (r IntegrationResult) Clone() IntegrationResult {
	out := r
	if r.BestMethod != nil {
		best := *r.BestMethod
		out.BestMethod = &best
	}
	out.Reliability = cloneWeights(r.Reliability)
	out.Ensemble.MethodWeights = cloneWeights(r.Ensemble.MethodWeights)
	if r.Ensemble.MethodsUsed != nil {
		out.Ensemble.MethodsUsed = append([]Method{}, r.Ensemble.MethodsUsed...)
	}
	if r.Recommendations != nil {
		out.Recommendations = append([]string{}, r.Recommendations...)
	}
	return out
}

func cloneWeights(in map[Method]float64) map[Method]float64 {
	if in == nil {
		return nil
	}
	out := make(map[Method]float64, len(in))
	for m, w := range in {
		out[m] = w
	}
	return out
}
