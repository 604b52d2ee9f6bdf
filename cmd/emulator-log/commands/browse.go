package commands

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/embedded-debugger/emulator-go/pkg/discovery"
)

// ServiceBrowser lists emulators on the local network.
type ServiceBrowser interface {
	Browse(ctx context.Context) (<-chan *discovery.Service, error)
}

// RunBrowse prints every emulator found before timeout expires.
func RunBrowse(ctx context.Context, b ServiceBrowser, timeout time.Duration, w io.Writer) (int, error) {
	if timeout <= 0 {
		timeout = discovery.BrowseTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	services, err := b.Browse(ctx)
	if err != nil {
		return 0, fmt.Errorf("browse failed: %w", err)
	}

	found := 0
	for svc := range services {
		found++
		formatService(w, svc)
	}
	return found, nil
}

func formatService(w io.Writer, svc *discovery.Service) {
	fmt.Fprintf(w, "%s\n", svc.InstanceName)
	fmt.Fprintf(w, "  Host:     %s:%d\n", svc.Host, svc.Port)
	if len(svc.Addresses) > 0 {
		fmt.Fprintf(w, "  Address:  %s\n", strings.Join(svc.Addresses, ", "))
	}
	if svc.CpuName != "" {
		fmt.Fprintf(w, "  CPU:      %s\n", svc.CpuName)
	}
	if svc.SerialNumber != "" {
		fmt.Fprintf(w, "  Serial:   %s\n", svc.SerialNumber)
	}
	if svc.ProtocolVersion != "" {
		fmt.Fprintf(w, "  Protocol: %s\n", svc.ProtocolVersion)
	}
	if svc.AppVersion != "" {
		fmt.Fprintf(w, "  App:      %s\n", svc.AppVersion)
	}
	fmt.Fprintln(w)
}
