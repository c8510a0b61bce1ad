package logging

type Category string
type SubCategory string
type ExtraKey string

const (
	General         Category = "General"
	Internal        Category = "Internal"
	Store           Category = "Store"
	Broker          Category = "Broker"
	RequestResponse Category = "RequestResponse"
	Prometheus      Category = "Prometheus"
)

const (
	// General
	Startup      SubCategory = "Startup"
	Shutdown     SubCategory = "Shutdown"
	RateLimiting SubCategory = "RateLimiting"

	// Store
	Push   SubCategory = "Push"
	Pop    SubCategory = "Pop"
	Sweep  SubCategory = "Sweep"
	Delete SubCategory = "Delete"

	// Broker
	Join  SubCategory = "Join"
	Leave SubCategory = "Leave"
	Relay SubCategory = "Relay"

	ExternalService SubCategory = "ExternalService"
)

const (
	AppName      ExtraKey = "AppName"
	LoggerName   ExtraKey = "Logger"
	ClientIp     ExtraKey = "ClientIp"
	Method       ExtraKey = "Method"
	StatusCode   ExtraKey = "StatusCode"
	BodySize     ExtraKey = "BodySize"
	Path         ExtraKey = "Path"
	Latency      ExtraKey = "Latency"
	RequestBody  ExtraKey = "RequestBody"
	ErrorMessage ExtraKey = "ErrorMessage"
	QueueID      ExtraKey = "QueueId"
	RoomID       ExtraKey = "RoomId"
	ClientID     ExtraKey = "ClientId"
	EventName    ExtraKey = "Event"
	Count        ExtraKey = "Count"
)
