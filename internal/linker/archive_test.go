package linker

import (
	"bytes"
	"fmt"
	"testing"
)

func buildArchive(t *testing.T, members map[string][]byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	buf.WriteString(archiveMagic)
	for name, body := range members {
		header := fmt.Sprintf("%-16s%-12d%-6d%-6d%-8s%-10d`\n", name+"/", 0, 0, 0, "100644", len(body))
		buf.WriteString(header)
		buf.Write(body)
		if len(body)%2 == 1 {
			buf.WriteByte('\n')
		}
	}
	return buf.Bytes()
}

func TestParseArchiveRegular(t *testing.T) {
	t.Parallel()
	data := buildArchive(t, map[string][]byte{"foo.o": []byte("OBJECT1"), "bar.o": []byte("OBJ2")})

	thin, members, err := parseArchive("/tmp", data)
	if err != nil {
		t.Fatalf("parseArchive: %v", err)
	}
	if thin {
		t.Fatal("expected a regular (non-thin) archive")
	}
	if len(members) != 2 {
		t.Fatalf("expected 2 members, got %d: %+v", len(members), members)
	}
	found := map[string]string{}
	for _, m := range members {
		body, err := m.loadMemberBytes()
		if err != nil {
			t.Fatalf("loadMemberBytes(%s): %v", m.name, err)
		}
		found[m.name] = string(body)
	}
	if found["foo.o"] != "OBJECT1" || found["bar.o"] != "OBJ2" {
		t.Fatalf("unexpected member contents: %+v", found)
	}
}

func TestParseArchiveRejectsBadMagic(t *testing.T) {
	t.Parallel()
	_, _, err := parseArchive("/tmp", []byte("not an archive"))
	if err == nil {
		t.Fatal("expected an error for malformed archive magic")
	}
}
