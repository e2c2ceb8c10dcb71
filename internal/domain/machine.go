package domain

import "strings"

// MachineID identifies a machine known to the island backend.
type MachineID int

// Machine is the inventory record for a single machine.
type Machine struct {
	ID                MachineID `json:"id"`
	NetworkInterfaces []string  `json:"network_interfaces"`
	OperatingSystem   string    `json:"operating_system"`
	Hostname          string    `json:"hostname"`
	Island            bool      `json:"island"`
}

// InterfaceAddresses returns the machine's interface addresses with any
// CIDR suffix stripped. The backend reports interfaces as "10.0.0.5/24"
// while propagation events carry bare target IPs.
func (m Machine) InterfaceAddresses() []string {
	addrs := make([]string, 0, len(m.NetworkInterfaces))
	for _, iface := range m.NetworkInterfaces {
		addr, _, _ := strings.Cut(iface, "/")
		if addr != "" {
			addrs = append(addrs, addr)
		}
	}
	return addrs
}
