// Package ws implements the WebSocket hub behind /ws/stream.
//
// Hub sends the current monitor snapshot to a client on connect, after every
// poll cycle (Notify) and on a keep-alive interval.
//
// Message format sent to clients:
//
//	{
//	  "event": "snapshot",
//	  "data":  { /* same schema as GET /api/v1/snapshot */ }
//	}
//
// The upgrader accepts all origins; CORS is handled by the HTTP middleware.
package ws
