package session

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
)

// Record layout, version 1. Fixed-width fields lead so the rotation Lua
// script can read and splice them at constant offsets; only the subject id
// is variable-length and it comes last.
//
//	[0]     version
//	[1]     flags (bit0 = revoked)
//	[2:6]   generation, u32 BE
//	[6:14]  subject epoch, u64 BE
//	[14:22] created at, unix seconds
//	[22:30] last rotated at, unix seconds
//	[30:38] expires at, unix seconds
//	[38:70] refresh hash, sha256
//	[70]    subject id length
//	[71:]   subject id
const recordVersion = 1

const (
	flagRevoked byte = 1 << 0

	fixedHeaderLen = 71
)

func Encode(s *Session) ([]byte, error) {
	if len(s.SubjectID) == 0 || len(s.SubjectID) > 255 {
		return nil, errors.New("subject id length out of range")
	}

	var buf bytes.Buffer
	buf.Grow(fixedHeaderLen + len(s.SubjectID))

	buf.WriteByte(recordVersion)

	var flags byte
	if s.Revoked {
		flags |= flagRevoked
	}
	buf.WriteByte(flags)

	if err := binary.Write(&buf, binary.BigEndian, s.Generation); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, s.SubjectEpoch); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, s.CreatedAt); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, s.LastRotatedAt); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, s.ExpiresAt); err != nil {
		return nil, err
	}
	buf.Write(s.RefreshHash[:])

	buf.WriteByte(byte(len(s.SubjectID)))
	buf.WriteString(s.SubjectID)

	return buf.Bytes(), nil
}

func Decode(data []byte) (*Session, error) {
	if len(data) < fixedHeaderLen {
		return nil, errors.New("session record truncated")
	}
	if data[0] != recordVersion {
		return nil, errors.New("invalid session record version")
	}

	s := &Session{
		Revoked: data[1]&flagRevoked != 0,
	}

	reader := bytes.NewReader(data[2:])
	if err := binary.Read(reader, binary.BigEndian, &s.Generation); err != nil {
		return nil, err
	}
	if err := binary.Read(reader, binary.BigEndian, &s.SubjectEpoch); err != nil {
		return nil, err
	}
	if err := binary.Read(reader, binary.BigEndian, &s.CreatedAt); err != nil {
		return nil, err
	}
	if err := binary.Read(reader, binary.BigEndian, &s.LastRotatedAt); err != nil {
		return nil, err
	}
	if err := binary.Read(reader, binary.BigEndian, &s.ExpiresAt); err != nil {
		return nil, err
	}
	if _, err := io.ReadFull(reader, s.RefreshHash[:]); err != nil {
		return nil, err
	}

	subjectLen, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if subjectLen == 0 {
		return nil, errors.New("session record missing subject id")
	}
	subject := make([]byte, subjectLen)
	if _, err := io.ReadFull(reader, subject); err != nil {
		return nil, errors.New("session record truncated")
	}
	s.SubjectID = string(subject)

	return s, nil
}
