package contract

// Host-side services.
const (
	HSLoggerForward       = "splm.browserinterop.infrastructure.services.LoggerForward.host"
	HSClientStatus        = "splm.browserinterop.infrastructure.services.core.ClientStatus.host"
	HSStartupNotification = "splm.browserinterop.infrastructure.services.startup.StartupNotification.host"
	HSHostConfiguration   = "splm.browserinterop.infrastructure.services.core.HostConfiguration.host"
	HSRefresh             = "splm.browserinterop.infrastructure.services.refresh.Refresh.host"
	HSSelectionProvider   = "splm.browserinterop.solutions.services.selection.SelectionProvider.host"
	HSInteropQuery        = "splm.browserinterop.solutions.services.interopquery.InteropQuery.host"
	HSAsyncSOAJSONMessage = "splm.browserinterop.infrastructure.services.soa.AsyncSoaJsonMessage.host"
)

// Client-side services.
const (
	CSClientInfo        = "splm.browserinterop.infrastructure.services.clientinfo.ClientInfo.client"
	CSRefresh           = "splm.browserinterop.infrastructure.services.refresh.Refresh.client"
	CSSelectionListener = "splm.browserinterop.solutions.services.selection.SelectionListener.client"
	CSInteropQuery      = "splm.browserinterop.solutions.services.interopquery.InteropQuery.client"
	CSOpenLocation      = "splm.browserinterop.infrastructure.services.openlocation.OpenLocation.client"
)

// Interface versions.
const (
	Version2014_02 = "_2014_02"
	Version2014_07 = "_2014_07"
	Version2014_10 = "_2014_10"
	Version2015_03 = "_2015_03"
	Version2015_10 = "_2015_10"
	Version2016_03 = "_2016_03"
	Version2017_05 = "_2017_05"
	Version2019_05 = "_2019_05"
)

// InteropVersion is returned to a pinging peer.
const InteropVersion = "4.0.0"

var symbols = map[string]string{
	"HS_LOGGER_FORWARD_SVC":          HSLoggerForward,
	"HS_CLIENT_STATUS_SVC":           HSClientStatus,
	"HS_CS_STARTUP_NOTIFICATION_SVC": HSStartupNotification,
	"HS_HOST_CONFIGURATION_SVC":      HSHostConfiguration,
	"HS_REFRESH_SVC":                 HSRefresh,
	"HS_SELECTION_PROVIDER_SVC":      HSSelectionProvider,
	"HS_INTEROPQUERY_SVC":            HSInteropQuery,
	"HS_ASYNC_SOA_JSON_MESSAGE_SVC":  HSAsyncSOAJSONMessage,
	"CS_GET_CLIENT_INFO_SVC":         CSClientInfo,
	"CS_REFRESH_SVC":                 CSRefresh,
	"CS_SELECTION_LISTENER_SVC":      CSSelectionListener,
	"CS_INTEROPQUERY_SVC":            CSInteropQuery,
	"CS_OPEN_LOCATION_SERVICE":       CSOpenLocation,
	"VERSION_2014_02":                Version2014_02,
	"VERSION_2014_07":                Version2014_07,
	"VERSION_2014_10":                Version2014_10,
	"VERSION_2015_03":                Version2015_03,
	"VERSION_2015_10":                Version2015_10,
	"VERSION_2016_03":                Version2016_03,
	"VERSION_2017_05":                Version2017_05,
	"VERSION_2019_05":                Version2019_05,
}

// LookupSymbol resolves a symbolic constant name, such as
// HS_LOGGER_FORWARD_SVC or VERSION_2019_05, to its wire value.
func LookupSymbol(name string) (string, bool) {
	v, ok := symbols[name]
	return v, ok
}
