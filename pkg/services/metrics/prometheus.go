package metrics

import (
	"net/http"

	"github.com/abelian-network/abelian-go/pkg/config"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// NewPrometheusService creates a service exposing registry metrics
// collected by the default Prometheus registerer.
func NewPrometheusService(cfg config.BasicService, log *zap.Logger) *Service {
	if log == nil {
		return nil
	}
	return NewService("Prometheus", newServers(cfg.Addresses, promhttp.Handler()), cfg, log)
}

// newServers creates HTTP servers sharing the same handler, one per address.
func newServers(addrs []string, h http.Handler) []*http.Server {
	srvs := make([]*http.Server, len(addrs))
	for i, addr := range addrs {
		srvs[i] = &http.Server{
			Addr:    addr,
			Handler: h,
		}
	}
	return srvs
}
