package logging

type Category string
type SubCategory string
type ExtraKey string

const (
	General    Category = "General"
	Internal   Category = "Internal"
	Redis      Category = "Redis"
	RabbitMQ   Category = "RabbitMQ"
	Validation Category = "Validation"
	Socket     Category = "Socket"
	Adapter    Category = "Adapter"
)

const (
	Startup      SubCategory = "Startup"
	Shutdown     SubCategory = "Shutdown"
	RateLimiting SubCategory = "RateLimiting"
	Lifecycle    SubCategory = "Lifecycle"
	Delivery     SubCategory = "Delivery"
	Handshake    SubCategory = "Handshake"
)

const (
	AppName      ExtraKey = "appName"
	NodeID       ExtraKey = "nodeId"
	RoomID       ExtraKey = "roomId"
	UserID       ExtraKey = "userId"
	ConnectionID ExtraKey = "socketId"
	EventName    ExtraKey = "event"
	ClientIp     ExtraKey = "clientIp"
	Reason       ExtraKey = "reason"
	Origin       ExtraKey = "origin"
	OriginNode   ExtraKey = "originNode"
	ErrorMessage ExtraKey = "error"
)
