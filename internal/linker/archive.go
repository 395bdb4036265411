package linker

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// archiveMagic and thinArchiveMagic are the two ar(1) file-format
// magic strings this linker recognizes as input (spec.md §4.7 phase 1).
const (
	archiveMagic     = "!<arch>\n"
	thinArchiveMagic = "!<thin>\n"
)

// archiveMember is one entry of a regular archive (object bytes
// embedded directly) or a thin archive (a path to load separately).
type archiveMember struct {
	name string
	data []byte // regular archive: the member's bytes
	path string // thin archive: path to the member file, relative to dir
}

// parseArchive reads the common ar(1) header format shared by regular
// and thin archives. dir is the archive's own directory, used to
// resolve thin-archive member paths.
func parseArchive(dir string, data []byte) (thin bool, members []archiveMember, err error) {
	if bytes.HasPrefix(data, []byte(thinArchiveMagic)) {
		thin = true
		data = data[len(thinArchiveMagic):]
	} else if bytes.HasPrefix(data, []byte(archiveMagic)) {
		data = data[len(archiveMagic):]
	} else {
		return false, nil, fmt.Errorf("linker: not an archive")
	}

	// Extended (GNU-style) filename table: a member literally named
	// "//" holds a blob of NUL/newline-separated names; later members
	// reference an offset into it via "/<n>".
	var longNames []byte

	for len(data) >= 60 {
		hdr := data[:60]
		data = data[60:]
		name := strings.TrimRight(string(hdr[0:16]), " ")
		sizeStr := strings.TrimSpace(string(hdr[48:58]))
		size, perr := strconv.ParseInt(sizeStr, 10, 64)
		if perr != nil {
			return thin, nil, fmt.Errorf("linker: malformed archive member size %q", sizeStr)
		}
		if int64(len(data)) < size {
			return thin, nil, fmt.Errorf("linker: truncated archive member %q", name)
		}
		body := data[:size]
		data = data[size:]
		if size%2 == 1 && len(data) > 0 {
			data = data[1:] // ar pads members to even length
		}

		switch {
		case name == "//":
			longNames = body
		case name == "/" || name == "/SYM64/":
			// symbol index table — this linker re-derives symbol
			// visibility by parsing each member directly instead, so
			// the index itself is skipped.
		case strings.HasPrefix(name, "/"):
			off, perr := strconv.Atoi(strings.TrimSuffix(name[1:], "/"))
			if perr == nil && off < len(longNames) {
				name = nulOrNewlineTerminated(longNames[off:])
			}
			members = append(members, finishMember(thin, dir, name, body))
		default:
			members = append(members, finishMember(thin, dir, strings.TrimSuffix(name, "/"), body))
		}
	}
	return thin, members, nil
}

func finishMember(thin bool, dir, name string, body []byte) archiveMember {
	if thin {
		return archiveMember{name: name, path: filepath.Join(dir, name)}
	}
	return archiveMember{name: name, data: body}
}

func nulOrNewlineTerminated(b []byte) string {
	for i, c := range b {
		if c == '\n' || c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}

// loadMemberBytes returns a thin member's bytes by reading its
// referenced path, or a regular member's embedded bytes directly.
func (m archiveMember) loadMemberBytes() ([]byte, error) {
	if m.path != "" {
		return os.ReadFile(m.path)
	}
	return m.data, nil
}
