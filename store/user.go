package store

// User identifies the caller of an operation chain and the authorisation
// tokens it holds.
type User struct {
	ID    string   `msgpack:"id" yaml:"id"`
	Auths []string `msgpack:"auths" yaml:"auths"`
}

// UnknownUser is used when the caller does not identify itself.
var UnknownUser = User{ID: "UNKNOWN"}

// HasAnyAuth reports whether u holds at least one of auths. An empty auths
// list is satisfied by every user.
func (u User) HasAnyAuth(auths ...string) bool {
	if len(auths) == 0 {
		return true
	}

	for _, want := range auths {
		for _, have := range u.Auths {
			if want == have {
				return true
			}
		}
	}

	return false
}
