package worker

import (
	"os"
	"runtime"

	"github.com/rangeworks/drover/pkg/capabilities"
)

// HostCapabilities returns the baseline capability set detected from the
// host. Operator-configured capabilities are merged over these, so an
// operator can override the detected values but never lose the baseline
// names.
func HostCapabilities() *capabilities.Capabilities {
	return capabilities.New(
		[]capabilities.AmountCapability{
			{Name: "amount.worker.vcpu", Value: float64(runtime.NumCPU())},
		},
		[]capabilities.AttributeCapability{
			{Name: "attr.worker.os.family", Values: []string{runtime.GOOS}},
			{Name: "attr.worker.cpu.arch", Values: []string{runtime.GOARCH}},
		},
	)
}

// HostProperties describes the host at registration time.
func HostProperties() map[string]string {
	props := map[string]string{
		"os.family": runtime.GOOS,
		"cpu.arch":  runtime.GOARCH,
	}
	if hostname, err := os.Hostname(); err == nil {
		props["hostname"] = hostname
	}
	return props
}
