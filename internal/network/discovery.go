// Package network provides network discovery and utilities.
package network

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"
)

// DiscoveredHost represents a ghostkeys bridge found on the network
type DiscoveredHost struct {
	IP      string `json:"ip"`
	Port    int    `json:"port"`
	State   string `json:"state,omitempty"`
	Version string `json:"version,omitempty"`
}

// GetLocalIP returns the primary local IP address
func GetLocalIP() (string, error) {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return "", err
	}
	defer conn.Close()

	localAddr := conn.LocalAddr().(*net.UDPAddr)
	return localAddr.IP.String(), nil
}

// ScanLAN scans the local network for ghostkeys bridges
// Returns discovered hosts on the same subnet
func ScanLAN(port int) ([]DiscoveredHost, error) {
	localIP, err := GetLocalIP()
	if err != nil {
		return nil, fmt.Errorf("failed to get local IP: %w", err)
	}

	// Parse the local IP to get the subnet
	parts := strings.Split(localIP, ".")
	if len(parts) != 4 {
		return nil, fmt.Errorf("invalid IP address format: %s", localIP)
	}

	subnet := fmt.Sprintf("%s.%s.%s", parts[0], parts[1], parts[2])

	var hosts []DiscoveredHost
	var mu sync.Mutex
	var wg sync.WaitGroup

	// Scan IPs 1-254 in the subnet
	for i := 1; i <= 254; i++ {
		wg.Add(1)
		go func(hostNum int) {
			defer wg.Done()

			ip := fmt.Sprintf("%s.%d", subnet, hostNum)

			// Skip our own IP
			if ip == localIP {
				return
			}

			if host, ok := probeHost(ip, port); ok {
				mu.Lock()
				hosts = append(hosts, host)
				mu.Unlock()
			}
		}(i)
	}

	wg.Wait()
	return hosts, nil
}

// probeHost checks if a host is running a ghostkeys bridge
func probeHost(ip string, port int) (DiscoveredHost, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	client := &http.Client{
		Timeout: 500 * time.Millisecond,
	}

	// The health endpoint identifies the app, keeping random services that
	// happen to answer /health out of the results
	healthURL := fmt.Sprintf("http://%s:%d/health", ip, port)
	req, err := http.NewRequestWithContext(ctx, "GET", healthURL, nil)
	if err != nil {
		return DiscoveredHost{}, false
	}

	resp, err := client.Do(req)
	if err != nil {
		return DiscoveredHost{}, false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return DiscoveredHost{}, false
	}

	var health struct {
		Status string `json:"status"`
		App    string `json:"app"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil || health.App != "ghostkeys" {
		return DiscoveredHost{}, false
	}

	// Status is optional detail; the host counts as discovered either way
	statusURL := fmt.Sprintf("http://%s:%d/api/status", ip, port)
	req, err = http.NewRequestWithContext(ctx, "GET", statusURL, nil)
	if err != nil {
		return DiscoveredHost{IP: ip, Port: port}, true
	}

	resp, err = client.Do(req)
	if err != nil {
		return DiscoveredHost{IP: ip, Port: port}, true
	}
	defer resp.Body.Close()

	var status struct {
		State   string `json:"state"`
		Version string `json:"version"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&status); err == nil {
		return DiscoveredHost{
			IP:      ip,
			Port:    port,
			State:   status.State,
			Version: status.Version,
		}, true
	}

	return DiscoveredHost{IP: ip, Port: port}, true
}

// GetLocalIPs returns all available local IPv4 addresses
func GetLocalIPs() ([]string, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}
	var ips []string
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 {
			continue // interface down
		}
		if iface.Flags&net.FlagLoopback != 0 {
			continue // loopback interface
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			var ip net.IP
			switch v := addr.(type) {
			case *net.IPNet:
				ip = v.IP
			case *net.IPAddr:
				ip = v.IP
			}
			if ip == nil || ip.IsLoopback() {
				continue
			}
			ip = ip.To4()
			if ip == nil {
				continue // not an ipv4 address
			}
			ips = append(ips, ip.String())
		}
	}
	return ips, nil
}
