package hg

import (
	"bytes"
	"fmt"
	"strconv"
)

// Authorship is the Mercurial shape of a commit identity: the free-form
// author field, a Unix timestamp and a UTC offset in seconds (seconds west
// of UTC, so Git's +0100 becomes -3600).
type Authorship struct {
	Author    []byte
	Timestamp []byte
	UTCOffset []byte
}

// ParseGitAuthorship splits a Git signature line `Name <email> ts tz` into
// its parts. Cruft-tolerant: a missing trailing date leaves ts/tz empty
// rather than failing, matching how Git itself treats broken idents it
// finds in history. The date fields are not validated.
func ParseGitAuthorship(line []byte) (name, email, ts, tz []byte) {
	open := bytes.LastIndexByte(line, '<')
	close_ := bytes.LastIndexByte(line, '>')
	if open == -1 || close_ == -1 || close_ < open {
		return line, nil, nil, nil
	}
	name = bytes.TrimRight(line[:open], " ")
	email = line[open+1 : close_]
	rest := bytes.TrimLeft(line[close_+1:], " ")
	ts, tz, _ = bytes.Cut(rest, []byte{' '})
	return
}

func gitTzToUTCOffset(tz []byte) []byte {
	if len(tz) != 5 {
		return []byte("0")
	}
	hours, err1 := strconv.Atoi(string(tz[1:3]))
	mins, err2 := strconv.Atoi(string(tz[3:5]))
	if err1 != nil || err2 != nil {
		return []byte("0")
	}
	offset := hours*3600 + mins*60
	// Mercurial offsets are seconds west of UTC, the sign of the Git zone
	// flipped.
	if tz[0] != '-' {
		offset = -offset
	}
	return []byte(strconv.Itoa(offset))
}

func utcOffsetToGitTz(utcoffset []byte) []byte {
	seconds, err := strconv.Atoi(string(utcoffset))
	if err != nil {
		return []byte("+0000")
	}
	sign := byte('+')
	if seconds > 0 {
		sign = '-'
	}
	if seconds < 0 {
		seconds = -seconds
	}
	return []byte(fmt.Sprintf("%c%02d%02d", sign, seconds/3600, (seconds%3600)/60))
}

// AuthorshipFromGit derives the Mercurial authorship of a Git signature
// line. A nameless ident collapses to `<email>`.
func AuthorshipFromGit(line []byte) Authorship {
	name, email, ts, tz := ParseGitAuthorship(line)
	var author bytes.Buffer
	if len(name) != 0 {
		author.Write(name)
		author.WriteByte(' ')
	}
	author.WriteByte('<')
	author.Write(email)
	author.WriteByte('>')
	if len(ts) == 0 {
		ts = []byte("0")
	}
	return Authorship{
		Author:    author.Bytes(),
		Timestamp: ts,
		UTCOffset: gitTzToUTCOffset(tz),
	}
}

// CommitterFromGit renders a Git signature line as the value of a
// `committer` extra: the Mercurial author followed by timestamp and
// utcoffset.
func CommitterFromGit(line []byte) []byte {
	a := AuthorshipFromGit(line)
	var buf bytes.Buffer
	buf.Write(a.Author)
	buf.WriteByte(' ')
	buf.Write(a.Timestamp)
	buf.WriteByte(' ')
	buf.Write(a.UTCOffset)
	return buf.Bytes()
}

// splitHgAuthor breaks a Mercurial author field into name and email.
// Mercurial never enforced a shape here, so fall back heuristically: an
// angle-bracketed address wins, then a bare address with '@', then the
// whole field as a name.
func splitHgAuthor(author []byte) (name, email []byte) {
	open := bytes.IndexByte(author, '<')
	close_ := bytes.LastIndexByte(author, '>')
	if open != -1 && close_ > open {
		name = bytes.TrimRight(author[:open], " ")
		email = author[open+1 : close_]
		return
	}
	if bytes.IndexByte(author, '@') != -1 {
		return nil, author
	}
	return author, nil
}

// GitFromAuthorship renders a Mercurial authorship as a Git signature line.
func GitFromAuthorship(a Authorship) []byte {
	name, email := splitHgAuthor(a.Author)
	ts := a.Timestamp
	if len(ts) == 0 {
		ts = []byte("0")
	}
	var buf bytes.Buffer
	buf.Write(name)
	buf.WriteString(" <")
	buf.Write(email)
	buf.WriteString("> ")
	buf.Write(ts)
	buf.WriteByte(' ')
	buf.Write(utcOffsetToGitTz(a.UTCOffset))
	return buf.Bytes()
}

// GitFromCommitter renders a full `committer` extra value (author,
// timestamp, utcoffset) as a Git signature line.
func GitFromCommitter(committer []byte) []byte {
	i := bytes.LastIndexByte(committer, ' ')
	if i == -1 {
		return GitFromAuthorship(Authorship{Author: committer})
	}
	utcoffset := committer[i+1:]
	j := bytes.LastIndexByte(committer[:i], ' ')
	if j == -1 {
		return GitFromAuthorship(Authorship{Author: committer})
	}
	return GitFromAuthorship(Authorship{
		Author:    committer[:j],
		Timestamp: committer[j+1 : i],
		UTCOffset: utcoffset,
	})
}
