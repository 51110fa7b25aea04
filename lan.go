package stratumd

import "net"

// lanTable holds the private and link-local ranges no GeoIP database has a
// country for.
var lanTable = mustDropTable(
	"10.0.0.0/8",
	"127.0.0.0/8",
	"169.254.0.0/16",
	"172.16.0.0/12",
	"192.168.0.0/16",
	"fc00::/7",
	"fe80::/10",
)

func mustDropTable(cidr ...string) *dropTable {
	d, err := newDropTable(cidr)
	if err != nil {
		panic(err)
	}
	return d
}

func isLan(ip net.IP) bool {
	return ip.IsLoopback() || lanTable.contains(ip)
}
