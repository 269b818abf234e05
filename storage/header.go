package storage

import "encoding/binary"

// HeaderSize is the encoded size of PageHeader: seven little-endian u32
// fields, matching spec §3/§6 byte for byte.
const HeaderSize = 7 * 4

// PageHeader is the first bytes of any tree or freelist page (spec §3).
type PageHeader struct {
	HdrPages  uint32 // contiguous pages at the primary location
	RealPages uint32 // total logical pages currently owned (primary + overflow)
	Bytes     uint32 // total bytes of valid content, including the header
	Checksum  uint32 // reserved; not verified by this store
	Overflow  uint32 // first page id of the overflow extent, or 0
	Size      uint32 // count of logical records (entries, or freelist extents)
	Next      uint32 // next sibling page at the same tree level, or 0
}

func decodeHeader(buf []byte) PageHeader {
	return PageHeader{
		HdrPages:  binary.LittleEndian.Uint32(buf[0:4]),
		RealPages: binary.LittleEndian.Uint32(buf[4:8]),
		Bytes:     binary.LittleEndian.Uint32(buf[8:12]),
		Checksum:  binary.LittleEndian.Uint32(buf[12:16]),
		Overflow:  binary.LittleEndian.Uint32(buf[16:20]),
		Size:      binary.LittleEndian.Uint32(buf[20:24]),
		Next:      binary.LittleEndian.Uint32(buf[24:28]),
	}
}

func (h PageHeader) encodeInto(buf []byte) {
	binary.LittleEndian.PutUint32(buf[0:4], h.HdrPages)
	binary.LittleEndian.PutUint32(buf[4:8], h.RealPages)
	binary.LittleEndian.PutUint32(buf[8:12], h.Bytes)
	binary.LittleEndian.PutUint32(buf[12:16], h.Checksum)
	binary.LittleEndian.PutUint32(buf[16:20], h.Overflow)
	binary.LittleEndian.PutUint32(buf[20:24], h.Size)
	binary.LittleEndian.PutUint32(buf[24:28], h.Next)
}
