package constant

const (
	INVALID_REQUEST      = "Invalid request payload"
	SOMETHING_WENT_WRONG = "something went wrong"

	CONNECTION_CREATED      = "Connection created, QR code pending"
	CONNECTIONS_RETRIEVED   = "Connections retrieved successfully"
	CONNECTION_RETRIEVED    = "Connection retrieved successfully"
	QR_CODE_READY           = "QR code ready"
	POLLING_STARTED         = "Waiting for the phone to pair"
	POLLING_STOPPED         = "Pairing poll stopped"
	NO_ACTIVE_POLL          = "No pairing poll was running"
	CONNECTION_DISCONNECTED = "Connection disconnected"
	CONNECTION_DELETED      = "Connection deleted"
	STATUS_SYNC_DONE        = "Status sync finished"
)
