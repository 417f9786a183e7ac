package server

import (
	"encoding/json"
	"net/http"
	"runtime"
	"time"

	"github.com/aristath/papertrader/internal/domain"
	"github.com/aristath/papertrader/internal/scheduler"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// AccountReader is the part of the paper engine the status page shows
type AccountReader interface {
	Summary(prices map[string]float64) domain.PortfolioSummary
}

// SymbolLister reports the subscribed symbols of the data gateway
type SymbolLister interface {
	Symbols() []string
}

// JobLister reports background job history
type JobLister interface {
	Status() []scheduler.JobStatus
}

// SystemInfo describes the running components. Jobs may be nil.
type SystemInfo struct {
	DataGateway  string
	TradeGateway string
	Jobs         JobLister
}

// SystemHandlers serves process and account status
type SystemHandlers struct {
	log         zerolog.Logger
	startupTime time.Time
	info        SystemInfo
	account     AccountReader
	symbols     SymbolLister
	stream      *EventStream
}

// NewSystemHandlers creates system handlers. account, symbols and stream may be nil.
func NewSystemHandlers(info SystemInfo, account AccountReader, symbols SymbolLister, stream *EventStream, log zerolog.Logger) *SystemHandlers {
	return &SystemHandlers{
		log:         log.With().Str("handler", "system").Logger(),
		startupTime: time.Now(),
		info:        info,
		account:     account,
		symbols:     symbols,
		stream:      stream,
	}
}

// SystemStatusResponse is the GET /api/system/status body
type SystemStatusResponse struct {
	Status        string                   `json:"status"`
	Uptime        string                   `json:"uptime"`
	DataGateway   string                   `json:"data_gateway"`
	TradeGateway  string                   `json:"trade_gateway"`
	Symbols       []string                 `json:"symbols"`
	Account       *domain.PortfolioSummary `json:"account,omitempty"`
	Jobs          []scheduler.JobStatus    `json:"jobs"`
	StreamClients int                      `json:"stream_clients"`
	Goroutines    int                      `json:"goroutines"`
	CPUPercent    float64                  `json:"cpu_percent"`
	RAMPercent    float64                  `json:"ram_percent"`
}

// HandleSystemStatus returns process and account status
// GET /api/system/status
func (h *SystemHandlers) HandleSystemStatus(w http.ResponseWriter, r *http.Request) {
	cpuPercent, ramPercent := h.getSystemStats()

	resp := SystemStatusResponse{
		Status:       "ok",
		Uptime:       time.Since(h.startupTime).Round(time.Second).String(),
		DataGateway:  h.info.DataGateway,
		TradeGateway: h.info.TradeGateway,
		Symbols:      []string{},
		Jobs:         []scheduler.JobStatus{},
		Goroutines:   runtime.NumGoroutine(),
		CPUPercent:   cpuPercent,
		RAMPercent:   ramPercent,
	}
	if h.symbols != nil {
		resp.Symbols = h.symbols.Symbols()
	}
	if h.info.Jobs != nil {
		resp.Jobs = h.info.Jobs.Status()
	}
	if h.account != nil {
		summary := h.account.Summary(nil)
		resp.Account = &summary
	}
	if h.stream != nil {
		resp.StreamClients = h.stream.ClientCount()
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode system status")
	}
}

// getSystemStats samples CPU over 100ms so the call stays fast
func (h *SystemHandlers) getSystemStats() (float64, float64) {
	cpuPercent, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get CPU percentage")
		cpuPercent = []float64{0}
	}

	memStat, err := mem.VirtualMemory()
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get memory statistics")
		return 0, 0
	}

	cpuAvg := 0.0
	if len(cpuPercent) > 0 {
		cpuAvg = cpuPercent[0]
	}
	return cpuAvg, memStat.UsedPercent
}
