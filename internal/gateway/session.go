package gateway

// Session is the authenticated principal a Client acts for. It is passed in
// explicitly; nothing reads credentials from ambient state.
type Session struct {
	Token  string
	UserID string
}

// Valid reports whether the session carries a token.
func (s Session) Valid() bool {
	return s.Token != ""
}

// BoardKey names the user's board resource, the same key the server uses
// for its snapshot cache.
func (s Session) BoardKey() string {
	return "board:" + s.UserID
}
