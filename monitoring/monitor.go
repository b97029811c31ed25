// Package monitoring turns a live session into a small web server, so the
// timeline and the captured records can be inspected while the host program
// runs.
package monitoring

import (
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"strconv"

	// Enable profiling
	_ "net/http/pprof"

	"github.com/gorilla/mux"
	"github.com/pkg/browser"
	"github.com/shirou/gopsutil/process"
	"github.com/syifan/goseth"

	"github.com/sarchlab/tracemark/capture"
	"github.com/sarchlab/tracemark/timeline"
)

// Monitor serves a live view of one session's timeline and record store.
type Monitor struct {
	timeline   timeline.Timeline
	store      *capture.Store
	portNumber int
	autoOpen   bool
}

// NewMonitor creates a new Monitor.
func NewMonitor() *Monitor {
	return &Monitor{}
}

// WithPortNumber sets the port number of the monitor.
func (m *Monitor) WithPortNumber(portNumber int) *Monitor {
	if portNumber < 1000 {
		fmt.Fprintf(os.Stderr,
			"Port number %d is assigned to the monitoring server, "+
				"which is not allowed. Using a random port instead.\n",
			portNumber)
		portNumber = 0
	}

	m.portNumber = portNumber

	return m
}

// WithAutoOpen makes StartServer open the monitor page in the local browser.
func (m *Monitor) WithAutoOpen() *Monitor {
	m.autoOpen = true
	return m
}

// RegisterTimeline registers the timeline to serve.
func (m *Monitor) RegisterTimeline(tl timeline.Timeline) {
	m.timeline = tl
}

// RegisterStore registers the captured-record store to serve.
func (m *Monitor) RegisterStore(s *capture.Store) {
	m.store = s
}

// StartServer starts the monitor as a web server, on the configured port or
// a random free one.
func (m *Monitor) StartServer() {
	r := mux.NewRouter()

	r.HandleFunc("/api/entries", m.listEntries)
	r.HandleFunc("/api/measures", m.listMeasures)
	r.HandleFunc("/api/records", m.listRecords)
	r.HandleFunc("/api/record/{id}", m.recordDetails)
	r.HandleFunc("/api/resource", m.listResources)
	http.Handle("/", r)

	actualPort := ":0"
	if m.portNumber > 1000 {
		actualPort = ":" + strconv.Itoa(m.portNumber)
	}

	listener, err := net.Listen("tcp", actualPort)
	dieOnErr(err)

	url := fmt.Sprintf("http://localhost:%d",
		listener.Addr().(*net.TCPAddr).Port)
	fmt.Fprintf(os.Stderr, "Monitoring timeline with %s\n", url)

	if m.autoOpen {
		err = browser.OpenURL(url + "/api/entries")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open browser: %s\n", err)
		}
	}

	go func() {
		err = http.Serve(listener, nil)
		dieOnErr(err)
	}()
}

func (m *Monitor) listEntries(w http.ResponseWriter, _ *http.Request) {
	if m.timeline == nil {
		w.WriteHeader(404)
		return
	}

	m.writeJSON(w, m.timeline.Entries())
}

func (m *Monitor) listMeasures(w http.ResponseWriter, _ *http.Request) {
	if m.timeline == nil {
		w.WriteHeader(404)
		return
	}

	measures := []timeline.Entry{}
	for _, entry := range m.timeline.Entries() {
		if entry.Kind == timeline.KindMeasure {
			measures = append(measures, entry)
		}
	}

	m.writeJSON(w, measures)
}

func (m *Monitor) listRecords(w http.ResponseWriter, _ *http.Request) {
	if m.store == nil {
		w.WriteHeader(404)
		return
	}

	m.writeJSON(w, m.store.All())
}

// recordDetails serializes one record with its full, possibly nested,
// request and response summaries.
func (m *Monitor) recordDetails(w http.ResponseWriter, r *http.Request) {
	if m.store == nil {
		w.WriteHeader(404)
		return
	}

	id := mux.Vars(r)["id"]

	record, ok := m.store.Get(id)
	if !ok {
		w.WriteHeader(404)
		return
	}

	serializer := goseth.NewSerializer()
	serializer.SetRoot(record)
	serializer.SetMaxDepth(3)
	err := serializer.Serialize(w)

	dieOnErr(err)
}

type resourceRsp struct {
	CPUPercent float64 `json:"cpu_percent"`
	MemorySize uint64  `json:"memory_size"`
}

func (m *Monitor) listResources(w http.ResponseWriter, _ *http.Request) {
	pid := os.Getpid()
	proc, err := process.NewProcess(int32(pid))
	dieOnErr(err)

	cpuPercent, err := proc.CPUPercent()
	dieOnErr(err)

	memorySize, err := proc.MemoryInfo()
	dieOnErr(err)

	m.writeJSON(w, resourceRsp{
		CPUPercent: cpuPercent,
		MemorySize: memorySize.RSS,
	})
}

func (m *Monitor) writeJSON(w http.ResponseWriter, v any) {
	bytes, err := json.Marshal(v)
	dieOnErr(err)

	w.Header().Set("Content-Type", "application/json")
	_, err = w.Write(bytes)
	dieOnErr(err)
}

func dieOnErr(err error) {
	if err != nil {
		log.Panic(err)
	}
}
