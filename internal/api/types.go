package api

// CreatedResponse answers a project creation.
type CreatedResponse struct {
	ID string `json:"id"`
}

// ProcessResponse answers an accepted stage or caption start.
type ProcessResponse struct {
	ProcessID string `json:"processId"`
}

// BatchRequest optionally narrows a caption batch to specific segments.
type BatchRequest struct {
	Segments []int `json:"segments"`
}

// CancelResponse reports how many running tasks were signaled.
type CancelResponse struct {
	Canceled int `json:"canceled"`
}

// DeletedResponse acknowledges a deletion.
type DeletedResponse struct {
	Deleted bool `json:"deleted"`
}

// ErrorResponse is the body of every non-2xx answer.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

// DependencyStatus reports one external binary.
type DependencyStatus struct {
	Name        string `json:"name"`
	Command     string `json:"command"`
	Description string `json:"description,omitempty"`
	Optional    bool   `json:"optional"`
	Available   bool   `json:"available"`
	Detail      string `json:"detail,omitempty"`
}

// HealthResponse summarizes daemon health.
type HealthResponse struct {
	Status       string             `json:"status"`
	Store        string             `json:"store"`
	StoreError   string             `json:"storeError,omitempty"`
	Dependencies []DependencyStatus `json:"dependencies"`
}

// Healthy reports whether the store answered and every required binary exists.
func (h HealthResponse) Healthy() bool {
	if h.StoreError != "" {
		return false
	}
	for _, dep := range h.Dependencies {
		if !dep.Optional && !dep.Available {
			return false
		}
	}
	return true
}
