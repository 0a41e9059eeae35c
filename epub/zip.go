package epub

import (
	"archive/zip"
	"fmt"
	"io"
)

// packer writes a zip container whose bytes depend only on its content:
// entries carry no modification time and are written in call order.
type packer struct {
	zw *zip.Writer
}

func newPacker(w io.Writer) (*packer, error) {
	p := &packer{zw: zip.NewWriter(w)}
	// The mimetype entry must come first and stay uncompressed.
	if err := p.add("mimetype", []byte("application/epub+zip"), zip.Store); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *packer) add(name string, data []byte, method uint16) error {
	header := &zip.FileHeader{
		Name:   name,
		Method: method,
	}
	writer, err := p.zw.CreateHeader(header)
	if err != nil {
		return fmt.Errorf("failed to add %s: %w", name, err)
	}
	if _, err := writer.Write(data); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	return nil
}

func (p *packer) addString(name, content string) error {
	return p.add(name, []byte(content), zip.Deflate)
}

func (p *packer) close() error {
	return p.zw.Close()
}
