//go:build windows

package netstat

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/windows"

	"github.com/eliteGoblin/netwatch/internal/domain"
)

// reference:
// https://docs.microsoft.com/en-us/windows/win32/api/iphlpapi/nf-iphlpapi-getextendedtcptable
var (
	modIphlpapi = windows.NewLazySystemDLL("iphlpapi.dll")

	procGetExtendedTCPTable = modIphlpapi.NewProc("GetExtendedTcpTable")
)

// TCP_TABLE_OWNER_PID_ALL: every socket state, each row carrying the owner PID.
const tcpTableOwnerPIDAll uint32 = 5

// Reader reads the IPv4 TCP table via iphlpapi GetExtendedTcpTable.
type Reader struct{}

// NewReader creates a connection table reader.
func NewReader() *Reader {
	return &Reader{}
}

// Snapshot returns all IPv4 TCP connections with owning PIDs, sorted by
// the OS. The native table buffer is scoped to this call.
func (r *Reader) Snapshot() ([]domain.Connection, error) {
	buffer, err := getTCPTable(windows.AF_INET, tcpTableOwnerPIDAll)
	if err != nil {
		return nil, fmt.Errorf("failed to get tcp table: %w", err)
	}
	return parseOwnerPIDTable(buffer), nil
}

// getTCPTable performs the two-phase size/fetch query. The first call reports
// the required buffer size; the fetch is retried with a fresh buffer whenever
// the table grew between the two calls.
// #nosec
func getTCPTable(ulAf, class uint32) ([]byte, error) {
	const maxAttempts = 64
	var (
		buffer   []byte
		tcpTable *byte
		dwSize   uint32
	)
	for i := 0; i < maxAttempts; i++ {
		ret, _, _ := procGetExtendedTCPTable.Call(
			uintptr(unsafe.Pointer(tcpTable)), uintptr(unsafe.Pointer(&dwSize)),
			uintptr(uint32(1)), uintptr(ulAf), uintptr(class), uintptr(uint32(0)),
		)
		if ret != windows.NO_ERROR {
			if windows.Errno(ret) == windows.ERROR_INSUFFICIENT_BUFFER {
				buffer = make([]byte, dwSize)
				tcpTable = &buffer[0]
				continue
			}
			return nil, windows.Errno(ret)
		}
		return buffer, nil
	}
	return nil, fmt.Errorf("tcp table still growing after %d attempts", maxAttempts)
}

// parseOwnerPIDTable decodes a MIB_TCPTABLE_OWNER_PID buffer: a uint32 row
// count followed by the row array.
func parseOwnerPIDTable(buffer []byte) []domain.Connection {
	if len(buffer) < 4 {
		return nil
	}
	n := *(*uint32)(unsafe.Pointer(&buffer[0]))
	if n == 0 {
		return nil
	}
	rows := unsafe.Slice((*tcpRowOwnerPID)(unsafe.Pointer(&buffer[4])), n)
	conns := make([]domain.Connection, len(rows))
	for i := range rows {
		conns[i] = decodeRow(rows[i])
	}
	return conns
}

var _ domain.TableReader = (*Reader)(nil)
