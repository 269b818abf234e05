package storage

// bytesToPages rounds n bytes up to whole pages.
func bytesToPages(n, pageSize uint32) uint32 {
	if n == 0 {
		return 0
	}
	return (n + pageSize - 1) / pageSize
}

// Page is the logical-page helper from spec §4.3, grounded on
// original_source/src/PageHelper.{h,cpp}: it presents a variable-length
// byte string as a single contiguous buffer backed by a fixed-size
// "primary" extent plus, when the content outgrows that extent, an
// "overflow" extent referenced by the header's Overflow field. Callers
// (btree nodes, the freelist's own persistence) never see the split; they
// call ReadContent/Write with the logical content only.
//
// The primary extent's page count (HdrPages) is fixed for the life of a
// given page id: growth and shrinkage beyond that capacity is absorbed
// entirely by reallocating the overflow extent, never by moving the
// primary extent itself (so a page id, once handed to a parent node as a
// child pointer, never needs to change).
type Page struct {
	store *Store
	id    uint32
	hdr   PageHeader
}

// newPage allocates a fresh primary extent sized to content and writes it.
func newPage(store *Store, content []byte) (*Page, error) {
	totalBytes := uint32(HeaderSize + len(content))
	hdrPages := bytesToPages(totalBytes, store.pageSize)
	if hdrPages == 0 {
		hdrPages = 1
	}
	id := store.freelist.Alloc(hdrPages)
	p := &Page{store: store, id: id, hdr: PageHeader{HdrPages: hdrPages, RealPages: hdrPages}}
	if err := p.writeContent(content); err != nil {
		return nil, err
	}
	return p, nil
}

// openPage loads an existing page by the id of its first primary page.
func openPage(store *Store, id uint32) (*Page, error) {
	buf := make([]byte, store.pageSize)
	if err := store.cache.Read(id, buf); err != nil {
		return nil, err
	}
	return &Page{store: store, id: id, hdr: decodeHeader(buf)}, nil
}

// ID is the page id a parent node stores as a child/root pointer.
func (p *Page) ID() uint32 { return p.id }

// Next is the sibling-chain pointer leaf nodes use for iteration.
func (p *Page) Next() uint32     { return p.hdr.Next }
func (p *Page) SetNext(n uint32) { p.hdr.Next = n }

// RecordCount is the header's Size field, used by nodes to store their
// element count without re-parsing content on every query.
func (p *Page) RecordCount() uint32     { return p.hdr.Size }
func (p *Page) SetRecordCount(n uint32) { p.hdr.Size = n }

// PrimaryCapacity is how many content bytes fit before an overflow extent
// is needed.
func (p *Page) PrimaryCapacity() uint32 {
	return p.hdr.HdrPages*p.store.pageSize - HeaderSize
}

// ReadContent returns the full logical content (excluding the header),
// transparently following the overflow extent if one is present.
func (p *Page) ReadContent() ([]byte, error) {
	pageSize := p.store.pageSize
	primary := make([]byte, p.hdr.HdrPages*pageSize)
	for i := uint32(0); i < p.hdr.HdrPages; i++ {
		if err := p.store.cache.Read(p.id+i, primary[i*pageSize:(i+1)*pageSize]); err != nil {
			return nil, err
		}
	}
	hdr := decodeHeader(primary)
	p.hdr = hdr

	primaryCap := hdr.HdrPages*pageSize - HeaderSize
	if hdr.Bytes <= HeaderSize {
		return nil, nil
	}
	contentLen := hdr.Bytes - HeaderSize
	if contentLen <= primaryCap {
		return primary[HeaderSize : HeaderSize+contentLen], nil
	}

	content := make([]byte, contentLen)
	copy(content, primary[HeaderSize:])
	overflowBytes := contentLen - primaryCap
	overflowPages := bytesToPages(overflowBytes, pageSize)
	ov := make([]byte, overflowPages*pageSize)
	for i := uint32(0); i < overflowPages; i++ {
		if err := p.store.cache.Read(hdr.Overflow+i, ov[i*pageSize:(i+1)*pageSize]); err != nil {
			return nil, err
		}
	}
	copy(content[primaryCap:], ov[:overflowBytes])
	return content, nil
}

// Write replaces the page's logical content, growing or shrinking the
// overflow extent as needed and leaving the primary extent's id and page
// count untouched.
func (p *Page) Write(content []byte) error {
	return p.writeContent(content)
}

func (p *Page) writeContent(content []byte) error {
	pageSize := p.store.pageSize
	totalBytes := uint32(HeaderSize + len(content))
	primaryCap := p.hdr.HdrPages*pageSize - HeaderSize

	var oldOverflowPages uint32
	if p.hdr.RealPages > p.hdr.HdrPages {
		oldOverflowPages = p.hdr.RealPages - p.hdr.HdrPages
	}

	var overflowID, overflowPages uint32
	switch {
	case uint32(len(content)) > primaryCap:
		neededBytes := uint32(len(content)) - primaryCap
		overflowPages = bytesToPages(neededBytes, pageSize)
		switch {
		case oldOverflowPages == 0:
			overflowID = p.store.freelist.Alloc(overflowPages)
		case overflowPages == oldOverflowPages:
			overflowID = p.hdr.Overflow
		default:
			overflowID = p.store.freelist.Realloc(p.hdr.Overflow, oldOverflowPages, overflowPages)
		}
	case oldOverflowPages > 0:
		p.store.freelist.Free(p.hdr.Overflow, oldOverflowPages)
	}

	p.hdr.Bytes = totalBytes
	p.hdr.RealPages = p.hdr.HdrPages + overflowPages
	p.hdr.Overflow = overflowID

	primaryBuf := make([]byte, p.hdr.HdrPages*pageSize)
	p.hdr.encodeInto(primaryBuf)
	inPrimary := len(content)
	if uint32(inPrimary) > primaryCap {
		inPrimary = int(primaryCap)
	}
	copy(primaryBuf[HeaderSize:], content[:inPrimary])
	for i := uint32(0); i < p.hdr.HdrPages; i++ {
		if err := p.store.cache.Write(p.id+i, primaryBuf[i*pageSize:(i+1)*pageSize]); err != nil {
			return err
		}
	}

	if overflowPages > 0 {
		rest := content[inPrimary:]
		ovBuf := make([]byte, overflowPages*pageSize)
		copy(ovBuf, rest)
		for i := uint32(0); i < overflowPages; i++ {
			if err := p.store.cache.Write(overflowID+i, ovBuf[i*pageSize:(i+1)*pageSize]); err != nil {
				return err
			}
		}
	}
	return nil
}

// Overflows reports whether content of the given byte length would spill
// past this page's primary extent. Nothing in this module calls it; btree
// nodes judge a put safe by record count alone (node.safeToInsert).
func (p *Page) Overflows(contentBytes int) bool {
	return uint32(contentBytes) > p.PrimaryCapacity()
}

// Free releases both the primary and, if present, overflow extents.
func (p *Page) Free() error {
	if p.hdr.RealPages > p.hdr.HdrPages {
		p.store.freelist.Free(p.hdr.Overflow, p.hdr.RealPages-p.hdr.HdrPages)
	}
	p.store.freelist.Free(p.id, p.hdr.HdrPages)
	return nil
}
