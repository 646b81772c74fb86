package models

// Fingerprint is the coarse client fingerprint sent on every local
// login/register and carried through the OAuth state parameter. It is
// advisory session metadata only, never an access control input. All
// fields are string-typed for transport.
type Fingerprint struct {
	Timezone            string `json:"tz"`
	ScreenRes           string `json:"screenRes"`
	ColorDepth          string `json:"colorDepth"`
	DevicePixelRatio    string `json:"devicePixelRatio"`
	TouchSupport        string `json:"touchSupport"`
	HardwareConcurrency string `json:"hardwareConcurrency"`
}

// OAuth actions accepted by the federated flow.
const (
	ActionRegister = "register"
	ActionLogin    = "login"
	ActionConnect  = "connect"
)

// ValidAction reports whether a is one of the three supported actions.
func ValidAction(a string) bool {
	return a == ActionRegister || a == ActionLogin || a == ActionConnect
}
