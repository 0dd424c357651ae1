package config

import (
	"net"
	"os"
	"sync"
)

var (
	isDockerOnce   sync.Once
	isDockerResult bool
)

// IsRunningInDocker returns true if the application is running inside a Docker container.
// Detection is based on the presence of /.dockerenv file.
// The result is cached after the first call.
func IsRunningInDocker() bool {
	isDockerOnce.Do(func() {
		_, err := os.Stat("/.dockerenv")
		isDockerResult = err == nil
	})
	return isDockerResult
}

// ResolveHostForDocker returns the appropriate host address for connecting to
// PostgreSQL, Redis or MinIO on the host machine.
// If running in Docker and the host is "localhost" or "127.0.0.1", it returns
// "host.docker.internal". Otherwise, returns the original host unchanged.
func ResolveHostForDocker(host string) string {
	if !IsRunningInDocker() {
		return host
	}
	return resolveLoopback(host)
}

// ResolveEndpointForDocker applies ResolveHostForDocker to the host part of a host:port endpoint.
func ResolveEndpointForDocker(endpoint string) string {
	host, port, err := net.SplitHostPort(endpoint)
	if err != nil {
		return ResolveHostForDocker(endpoint)
	}
	return net.JoinHostPort(ResolveHostForDocker(host), port)
}

func resolveLoopback(host string) string {
	if host == "localhost" || host == "127.0.0.1" {
		return "host.docker.internal"
	}
	return host
}
