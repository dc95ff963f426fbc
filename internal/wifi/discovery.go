// ABOUTME: Optional mDNS browse for NTP servers announced on the local network
// ABOUTME: Discovered hosts are prepended to the configured server list
package wifi

import (
	"fmt"
	"log"
	"time"

	"github.com/hashicorp/mdns"
)

const ntpService = "_ntp._udp"

// DiscoverNTPServers browses the local network for advertised NTP services
// and returns their host:port endpoints, strongest-first ordering not
// guaranteed. A GPS-disciplined server on the LAN beats any internet pool
// host, so callers put these ahead of the configured list. Off by default;
// enabled through config.
func DiscoverNTPServers(timeout time.Duration) []string {
	entries := make(chan *mdns.ServiceEntry, 10)
	var found []string

	done := make(chan struct{})
	go func() {
		defer close(done)
		for entry := range entries {
			if entry.AddrV4 == nil {
				continue
			}
			ep := fmt.Sprintf("%s:%d", entry.AddrV4.String(), entry.Port)
			log.Printf("[WIFI] discovered local NTP server %s (%s)", ep, entry.Name)
			found = append(found, ep)
		}
	}()

	params := &mdns.QueryParam{
		Service: ntpService,
		Domain:  "local",
		Timeout: timeout,
		Entries: entries,
	}
	if err := mdns.Query(params); err != nil {
		log.Printf("[WIFI] mdns query: %v", err)
	}
	close(entries)
	<-done
	return found
}
