package extract

import (
	"fmt"
	"io"

	"github.com/goopsie/soiTools/pkg/cook"
	"github.com/goopsie/soiTools/pkg/format"
	"github.com/goopsie/soiTools/pkg/str"
)

// DumpScene writes a listing of every placed model and collision object in
// streaming order. Models are numbered separately from animated models and
// from collision objects, starting at 1.
func DumpScene(w io.Writer, index *cook.Index, stream SectionReader) error {
	var animated, static, objects int
	for _, section := range index.Sections() {
		data, err := stream.ReadSectionData(section)
		if err != nil {
			return err
		}
		for _, c := range data.All() {
			var block string
			switch c.Kind {
			case str.KindRenderableModel:
				m, ok := index.FindModel(section.ID, c.ID, c.InstanceID)
				if !ok {
					return miss(c.Kind, section.ID, c)
				}
				if m.Info.Animated() {
					animated++
					block = fmt.Sprintf("[AnimatedModel%d]\n%s", animated, m)
				} else {
					static++
					block = fmt.Sprintf("[Model%d]\n%s", static, m)
				}
			case str.KindCollisionModel:
				m, ok := index.FindCollisionModel(section.ID, c.ID, c.InstanceID)
				if !ok {
					return miss(c.Kind, section.ID, c)
				}
				objects++
				block = fmt.Sprintf("[Object%d]\n%s", objects, m)
			default:
				continue
			}
			if _, err := io.WriteString(w, block+"\n"); err != nil {
				return format.IOError("write scene", err)
			}
		}
	}
	return nil
}
