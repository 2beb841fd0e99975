// Package sse streams a user's events to a client over Server-Sent Events.
//
// A Session is one live connection: Subscribe attaches it to the user's
// channel in the registry, Records turns the channel into a sequence of wire
// records with heartbeats and a final disconnect record, and Close releases
// the registry entry. ServeSSE writes that sequence to an HTTP response.
//
//	router.GET("/events", func(c *gin.Context) {
//	    _ = sse.ServeSSE(reg, c.Writer, c.Request, userID)
//	})
package sse
