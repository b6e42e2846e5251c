package localfs

import (
	"bufio"
	"crypto/md5"
	"encoding/hex"
	"io"
	"os"
	"strings"

	"github.com/teranos/trawl/errors"
	"github.com/teranos/trawl/ingest"
)

// KnownSet is a set of MD5 digests of known files. A digest prefixed
// with "!" in the hash list is known bad.
type KnownSet struct {
	hashes map[string]ingest.KnownStatus
}

// NewKnownSet builds a set of known-good digests.
func NewKnownSet(md5s ...string) *KnownSet {
	k := &KnownSet{hashes: make(map[string]ingest.KnownStatus, len(md5s))}
	for _, h := range md5s {
		k.hashes[strings.ToLower(h)] = ingest.Known
	}
	return k
}

// LoadKnownSet reads one hex MD5 per line. Blank lines and lines starting
// with '#' are ignored.
func LoadKnownSet(path string) (*KnownSet, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open hash set %s", path)
	}
	defer f.Close()

	k := NewKnownSet()
	scanner := bufio.NewScanner(f)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}

		status := ingest.Known
		if strings.HasPrefix(text, "!") {
			status = ingest.KnownBad
			text = strings.TrimPrefix(text, "!")
		}
		if _, err := hex.DecodeString(text); err != nil || len(text) != md5.Size*2 {
			return nil, errors.WrapMalformed(
				errors.Newf("line %d: %q is not an MD5 digest", line, text),
				"failed to load hash set "+path,
			)
		}
		k.hashes[strings.ToLower(text)] = status
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrapf(err, "failed to read hash set %s", path)
	}
	return k, nil
}

// Len returns the number of digests. A nil set is empty.
func (k *KnownSet) Len() int {
	if k == nil {
		return 0
	}
	return len(k.hashes)
}

// Lookup returns the status of a hex digest.
func (k *KnownSet) Lookup(md5hex string) ingest.KnownStatus {
	if k == nil {
		return ingest.Unknown
	}
	return k.hashes[strings.ToLower(md5hex)]
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := md5.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
