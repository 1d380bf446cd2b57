package matchmaking

// Registry binds connection ids to user ids and back. A user has at most one bound
// connection; binding a new one supersedes the old binding.
//
// Registry is not safe for concurrent use. Service serializes access to it.
type Registry struct {
	byConn map[string]string // connID -> userID
	byUser map[string]string // userID -> connID
}

func NewRegistry() *Registry {
	return &Registry{
		byConn: make(map[string]string),
		byUser: make(map[string]string),
	}
}

// Bind associates connID with userID. It returns the connection id that was previously
// bound to userID, if any and if different. The superseded connection is unbound but
// not closed.
func (r *Registry) Bind(connID, userID string) (superseded string) {
	if prevUser, ok := r.byConn[connID]; ok && prevUser != userID {
		delete(r.byUser, prevUser)
	}
	if prev, ok := r.byUser[userID]; ok && prev != connID {
		delete(r.byConn, prev)
		superseded = prev
	}
	r.byConn[connID] = userID
	r.byUser[userID] = connID
	return superseded
}

// UnbindConn removes the binding for connID and reports the user it belonged to.
func (r *Registry) UnbindConn(connID string) (string, bool) {
	userID, ok := r.byConn[connID]
	if !ok {
		return "", false
	}
	delete(r.byConn, connID)
	if r.byUser[userID] == connID {
		delete(r.byUser, userID)
	}
	return userID, true
}

func (r *Registry) UserFor(connID string) (string, bool) {
	userID, ok := r.byConn[connID]
	return userID, ok
}

func (r *Registry) ConnFor(userID string) (string, bool) {
	connID, ok := r.byUser[userID]
	return connID, ok
}

// Reachable reports whether userID currently has a bound connection.
func (r *Registry) Reachable(userID string) bool {
	_, ok := r.byUser[userID]
	return ok
}

func (r *Registry) Len() int {
	return len(r.byConn)
}
