//go:build integration

package integration

import (
	"context"
	"net"
	"os"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/eliteGoblin/netwatch/internal/domain"
	"github.com/eliteGoblin/netwatch/internal/journal"
	"github.com/eliteGoblin/netwatch/internal/monitor"
	"github.com/eliteGoblin/netwatch/internal/resolve"
)

// scriptedReader serves a fixed sequence of snapshots; the last one repeats.
type scriptedReader struct {
	snapshots [][]domain.Connection
	calls     int
}

func (r *scriptedReader) Snapshot() ([]domain.Connection, error) {
	i := r.calls
	r.calls++
	if i >= len(r.snapshots) {
		i = len(r.snapshots) - 1
	}
	return r.snapshots[i], nil
}

type fixedProber struct {
	reachable bool
}

func (p *fixedProber) Probe(ctx context.Context) bool {
	return p.reachable
}

func establishedConn(pid int32, localPort uint16) domain.Connection {
	return domain.Connection{
		State:  domain.StateEstablished,
		PID:    pid,
		Local:  domain.Endpoint{IP: net.IPv4(10, 0, 0, 5).To4(), Port: localPort},
		Remote: domain.Endpoint{IP: net.IPv4(142, 250, 72, 206).To4(), Port: 443},
	}
}

var _ = Describe("Monitor with encrypted journal", func() {
	var (
		tmpDir string
		jrnl   *journal.Journal
	)

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "netwatch-integration-*")
		Expect(err).NotTo(HaveOccurred())

		key, err := journal.NewFileKeyProvider(tmpDir).EnsureKey()
		Expect(err).NotTo(HaveOccurred())

		jrnl, err = journal.Open(tmpDir, key)
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		jrnl.Close()
		os.RemoveAll(tmpDir)
	})

	Context("when connections appear across poll cycles", func() {
		It("journals each distinct connection exactly once", func() {
			ownPID := int32(os.Getpid())
			reader := &scriptedReader{snapshots: [][]domain.Connection{
				{establishedConn(ownPID, 51000)},
				{establishedConn(ownPID, 51000)},
				{establishedConn(ownPID, 51000), establishedConn(ownPID, 51010)},
			}}

			mon := monitor.New(
				monitor.Config{Interval: 10 * time.Millisecond},
				reader,
				monitor.NewTracker(resolve.NewCachedResolver()),
				&fixedProber{reachable: true},
				zap.NewNop(),
				jrnl,
			)

			ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
			defer cancel()
			err := mon.Run(ctx)
			Expect(err).To(MatchError(context.DeadlineExceeded))

			count, err := jrnl.EventCount()
			Expect(err).NotTo(HaveOccurred())
			Expect(count).To(Equal(2))
		})

		It("attributes events owned by this process to its real name", func() {
			resolver := resolve.NewCachedResolver()
			name := resolver.Resolve(int32(os.Getpid()))
			Expect(name).NotTo(Equal(resolve.UnknownProcess))
			Expect(name).NotTo(BeEmpty())
		})
	})

	Context("when the journal is reopened", func() {
		It("keeps the audit trail but the monitor starts fresh", func() {
			ownPID := int32(os.Getpid())
			reader := &scriptedReader{snapshots: [][]domain.Connection{
				{establishedConn(ownPID, 51000)},
			}}

			run := func() {
				mon := monitor.New(
					monitor.Config{Interval: 10 * time.Millisecond},
					reader,
					monitor.NewTracker(resolve.NewCachedResolver()),
					&fixedProber{reachable: true},
					zap.NewNop(),
					jrnl,
				)
				ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
				defer cancel()
				Expect(mon.Run(ctx)).To(MatchError(context.DeadlineExceeded))
			}

			// Two monitor lifetimes against one journal: the seen set is
			// rebuilt from empty, so the same connection journals twice.
			run()
			run()

			count, err := jrnl.EventCount()
			Expect(err).NotTo(HaveOccurred())
			Expect(count).To(Equal(2))
		})
	})
})
