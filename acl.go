package stratumd

import (
	"bytes"
	"fmt"
	"net"
	"sort"
	"strings"
)

// subNet returns the first and last address of n, both in 16 byte form.
func subNet(n *net.IPNet) (start, end net.IP) {
	ip := n.IP.To16()
	mask := n.Mask
	if len(mask) == net.IPv4len {
		mask = append(net.CIDRMask(96, 128)[:12:12], mask...)
	}
	start = make(net.IP, net.IPv6len)
	end = make(net.IP, net.IPv6len)
	for i := 0; i < net.IPv6len; i++ {
		start[i] = ip[i] & mask[i]
		end[i] = ip[i] | ^mask[i]
	}
	return
}

type cidrItem struct {
	ipnet       *net.IPNet
	left, right net.IP
}

// dropTable holds non overlapping networks sorted by first address.
type dropTable struct {
	items []cidrItem
}

func newDropTable(cidr []string) (d *dropTable, err error) {
	d = &dropTable{}
	for _, c := range cidr {
		var n *net.IPNet
		_, n, err = net.ParseCIDR(c)
		if err != nil {
			return nil, err
		}
		l, r := subNet(n)
		d.items = append(d.items, cidrItem{ipnet: n, left: l, right: r})
	}
	sort.Slice(d.items, func(i, j int) bool {
		return bytes.Compare(d.items[i].left, d.items[j].left) < 0
	})

	for i := 0; i < len(d.items)-1; i++ {
		if bytes.Compare(d.items[i+1].left, d.items[i].right) <= 0 {
			return nil, fmt.Errorf("cidr overlaped, %s and %s",
				d.items[i].ipnet, d.items[i+1].ipnet)
		}
	}
	return
}

func (d *dropTable) contains(ip net.IP) bool {
	if d == nil || len(d.items) == 0 {
		return false
	}
	ip = ip.To16()
	if ip == nil {
		return false
	}
	i := sort.Search(len(d.items), func(i int) bool {
		return bytes.Compare(d.items[i].right, ip) >= 0
	})
	return i < len(d.items) && bytes.Compare(d.items[i].left, ip) <= 0
}

func (d *dropTable) String() string {
	var w strings.Builder
	for _, r := range d.items {
		fmt.Fprintf(&w, "%s\n", r.ipnet)
	}
	return w.String()
}
