// Package transport implements a client for the git smart-HTTP
// protocol.
// It only deals with the wire: discovering refs, downloading
// packfiles, and uploading packfiles. Deciding what to fetch or push
// is left to the caller
// https://git-scm.com/docs/http-protocol
package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-vcs/gitcore/ginternals"
	"github.com/go-vcs/gitcore/ginternals/pktline"
	"github.com/go-vcs/gitcore/internal/errutil"
	"golang.org/x/xerrors"
)

const (
	// UploadPackService is the service used to fetch data from a
	// remote (clone and pull)
	UploadPackService = "git-upload-pack"

	// ReceivePackService is the service used to send data to a
	// remote (push)
	ReceivePackService = "git-receive-pack"
)

var (
	// ErrTransportFailed is returned when the remote could not be
	// reached or answered with an unexpected status
	ErrTransportFailed = errors.New("transport failed")

	// ErrAdvertisementInvalid is returned when the ref advertisement
	// of a remote doesn't follow the smart protocol
	ErrAdvertisementInvalid = errors.New("ref advertisement is invalid")

	// ErrEmptyResponse is returned when a remote advertises no refs
	ErrEmptyResponse = errors.New("remote advertised no refs")

	// ErrPushRejected is returned when the remote refused to unpack
	// or apply a pushed pack
	ErrPushRejected = errors.New("push rejected by the remote")
)

// Ref represents a reference advertised by a remote
type Ref struct {
	Name string
	ID   ginternals.Oid
}

// Client talks to remote repositories over smart HTTP
type Client struct {
	http *http.Client
}

// NewClient returns a new Client backed by the given http client.
// A nil client falls back to a default one with a timeout
func NewClient(c *http.Client) *Client {
	if c == nil {
		c = &http.Client{
			Timeout: 30 * time.Second,
		}
	}
	return &Client{http: c}
}

// AdvertiseRefs asks the remote for the refs it has, using the given
// service.
// The advertisement must start with a "# service=" banner followed by
// a flush packet, otherwise ErrAdvertisementInvalid is returned
func (c *Client) AdvertiseRefs(ctx context.Context, repoURL, service string) (refs []Ref, err error) {
	url := fmt.Sprintf("%s/info/refs?service=%s", strings.TrimSuffix(repoURL, "/"), service)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, xerrors.Errorf("could not create request: %w", err)
	}
	req.Header.Set("Accept", fmt.Sprintf("application/x-%s-advertisement", service))

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, xerrors.Errorf("could not reach %s: %w", url, ErrTransportFailed)
	}
	defer errutil.Close(resp.Body, &err)

	if resp.StatusCode != http.StatusOK {
		return nil, xerrors.Errorf("unexpected status %d from %s: %w", resp.StatusCode, url, ErrTransportFailed)
	}

	r := pktline.NewReader(resp.Body)

	// the stream opens with "# service=git-upload-pack\n" and a
	// flush packet before any ref shows up
	banner, isFlush, err := r.ReadPacket()
	if err != nil {
		return nil, xerrors.Errorf("could not read the banner: %w", ErrAdvertisementInvalid)
	}
	if isFlush || !strings.HasPrefix(string(banner), "# service="+service) {
		return nil, xerrors.Errorf("missing service banner: %w", ErrAdvertisementInvalid)
	}
	_, isFlush, err = r.ReadPacket()
	if err != nil || !isFlush {
		return nil, xerrors.Errorf("missing flush after the banner: %w", ErrAdvertisementInvalid)
	}

	for {
		data, isFlush, err := r.ReadPacket()
		if errors.Is(err, io.EOF) || isFlush {
			break
		}
		if err != nil {
			return nil, xerrors.Errorf("could not read a ref line: %w", err)
		}

		ref, ok, err := parseRefLine(data)
		if err != nil {
			return nil, err
		}
		if ok {
			refs = append(refs, ref)
		}
	}

	if len(refs) == 0 {
		return nil, ErrEmptyResponse
	}
	return refs, nil
}

// parseRefLine parses a single "oid SP refname" advertisement line.
// The capability list of the first line (after a NUL) is dropped, and
// the "capabilities^{}" placeholder of empty repositories is skipped
func parseRefLine(data []byte) (ref Ref, ok bool, err error) {
	line := strings.TrimSuffix(string(data), "\n")
	if i := strings.IndexByte(line, 0); i >= 0 {
		line = line[:i]
	}

	sha, name, found := strings.Cut(line, " ")
	if !found {
		return Ref{}, false, xerrors.Errorf("ref line %q has no name: %w", line, ErrAdvertisementInvalid)
	}
	if name == "capabilities^{}" {
		return Ref{}, false, nil
	}
	id, err := ginternals.NewOidFromStr(sha)
	if err != nil {
		return Ref{}, false, xerrors.Errorf("ref line %q has an invalid oid: %w", line, ErrAdvertisementInvalid)
	}
	return Ref{Name: name, ID: id}, true, nil
}

// FetchPack asks the remote for a packfile containing the wanted
// objects, minus everything reachable from the haves.
// The returned bytes are a raw packfile, ready for packfile.Parse
func (c *Client) FetchPack(ctx context.Context, repoURL string, wants, haves []ginternals.Oid) (pack []byte, err error) {
	body := new(bytes.Buffer)
	w := pktline.NewWriter(body)
	for _, id := range wants {
		if err = w.WriteString(fmt.Sprintf("want %s\n", id.String())); err != nil {
			return nil, xerrors.Errorf("could not write want line: %w", err)
		}
	}
	if err = w.Flush(); err != nil {
		return nil, xerrors.Errorf("could not write flush: %w", err)
	}
	for _, id := range haves {
		if err = w.WriteString(fmt.Sprintf("have %s\n", id.String())); err != nil {
			return nil, xerrors.Errorf("could not write have line: %w", err)
		}
	}
	if err = w.WriteString("done\n"); err != nil {
		return nil, xerrors.Errorf("could not write done line: %w", err)
	}

	resp, err := c.post(ctx, repoURL, UploadPackService, body)
	if err != nil {
		return nil, err
	}
	defer errutil.Close(resp.Body, &err)

	// the remote acknowledges the negotiation with NAK/ACK packets,
	// then the raw packfile follows unframed
	r := pktline.NewReader(resp.Body)
	for {
		data, isFlush, err := r.ReadPacket()
		if err != nil {
			return nil, xerrors.Errorf("could not read the negotiation answer: %w", err)
		}
		if isFlush {
			continue
		}
		line := strings.TrimSuffix(string(data), "\n")
		if line == "NAK" || strings.HasPrefix(line, "ACK ") {
			break
		}
		return nil, xerrors.Errorf("unexpected negotiation line %q: %w", line, ErrTransportFailed)
	}

	pack, err = io.ReadAll(resp.Body)
	if err != nil {
		return nil, xerrors.Errorf("could not download the packfile: %w", err)
	}
	return pack, nil
}

// PushPack uploads a packfile to the remote and asks it to move
// refName from oldID to newID.
// oldID may be the null oid to create the ref. ErrPushRejected is
// returned if the remote doesn't report a successful unpack
func (c *Client) PushPack(ctx context.Context, repoURL string, oldID, newID ginternals.Oid, refName string, pack []byte) (err error) {
	body := new(bytes.Buffer)
	w := pktline.NewWriter(body)
	cmd := fmt.Sprintf("%s %s %s\x00 report-status\n", oldID.String(), newID.String(), refName)
	if err = w.WriteString(cmd); err != nil {
		return xerrors.Errorf("could not write the update command: %w", err)
	}
	if err = w.Flush(); err != nil {
		return xerrors.Errorf("could not write flush: %w", err)
	}
	if _, err = body.Write(pack); err != nil {
		return xerrors.Errorf("could not append the packfile: %w", err)
	}

	resp, err := c.post(ctx, repoURL, ReceivePackService, body)
	if err != nil {
		return err
	}
	defer errutil.Close(resp.Body, &err)

	// report-status answers with "unpack ok" followed by one line
	// per ref
	r := pktline.NewReader(resp.Body)
	unpackOK := false
	for {
		data, isFlush, err := r.ReadPacket()
		if errors.Is(err, io.EOF) || isFlush {
			break
		}
		if err != nil {
			return xerrors.Errorf("could not read the status report: %w", err)
		}
		line := strings.TrimSuffix(string(data), "\n")
		switch {
		case line == "unpack ok":
			unpackOK = true
		case strings.HasPrefix(line, "ng "):
			return xerrors.Errorf("remote refused %q: %w", line, ErrPushRejected)
		}
	}
	if !unpackOK {
		return xerrors.Errorf("remote did not acknowledge the pack: %w", ErrPushRejected)
	}
	return nil
}

// post sends a service request and validates the response status
func (c *Client) post(ctx context.Context, repoURL, service string, body io.Reader) (*http.Response, error) {
	url := fmt.Sprintf("%s/%s", strings.TrimSuffix(repoURL, "/"), service)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return nil, xerrors.Errorf("could not create request: %w", err)
	}
	req.Header.Set("Content-Type", fmt.Sprintf("application/x-%s-request", service))
	req.Header.Set("Accept", fmt.Sprintf("application/x-%s-result", service))

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, xerrors.Errorf("could not reach %s: %w", url, ErrTransportFailed)
	}
	if resp.StatusCode != http.StatusOK {
		errutil.Close(resp.Body, &err)
		return nil, xerrors.Errorf("unexpected status %d from %s: %w", resp.StatusCode, url, ErrTransportFailed)
	}
	return resp, nil
}
