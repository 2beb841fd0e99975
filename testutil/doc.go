// Package testutil starts lifecycle components inside tests and stops them
// when the test ends.
//
//	func TestRelay(t *testing.T) {
//	    r := relay.New(conn, local)
//	    testutil.Start(t, r)
//	    testutil.WaitForStatus(t, r, component.StatusHealthy)
//	}
package testutil
