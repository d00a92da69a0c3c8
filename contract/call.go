package contract

// Bio function names exchanged between the two sides.
const (
	FuncHostEvent            = "splmHostEvent"
	FuncHostMethod           = "splmHostMethod"
	FuncWebEvent             = "splmInterop_WebEvent"
	FuncWebMethod            = "splmInterop_WebMethod"
	FuncPing                 = "splmInterop_Ping"
	FuncServiceListUpdate    = "splmInterop_HostServiceListUpdate"
	FuncRequestServiceList   = "splmInterop_RequestWebServiceList"
	FuncStartHandShake       = "splmHost_WebSideStartHandShake"
	FuncWebServiceListUpdate = "splmHost_WebSideServiceListUpdate"
	FuncConfig               = "config"
	FuncHostSession          = "host_session"
)

// Call is one bio function invocation. Service holds the JSON form of the
// target descriptor for event and method calls.
type Call struct {
	Function string `json:"bioFunction"`
	Service  string `json:"service,omitempty"`
	Payload  string `json:"payload,omitempty"`
}

// PingPayload is the payload of FuncPing.
type PingPayload struct {
	HostVersion string `json:"hostVersion"`
}

// ServiceListPayload is the payload of FuncServiceListUpdate.
type ServiceListPayload struct {
	Action   string `json:"action,omitempty"`
	JSONList string `json:"jsonList"`
	SendList bool   `json:"sendList,omitempty"`
}
