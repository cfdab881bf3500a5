package media

import (
	"github.com/mediagraph/catalog-client/pkg/catalog/entities"
	"github.com/mediagraph/catalog-client/pkg/catalog/schema"
	"github.com/mediagraph/catalog-client/pkg/catalog/types"
	"github.com/mediagraph/catalog-client/pkg/catalog/types/fields"
	"github.com/mediagraph/catalog-client/pkg/catalog/types/scalars"
)

// File is the declared interface behind the catalog's polymorphic file
// payloads. Payloads tagged VideoFile or ImageFile resolve to the matching
// concrete type; any other tag is a type mismatch.
type File interface {
	entities.Model
	file()
}

type fileMarker struct{}

func (fileMarker) file() {}

// baseFileTypeName is the declared interface name file payloads resolve
// against.
const baseFileTypeName = "BaseFile"

// VideoFile is a video asset attached to a scene.
type VideoFile struct {
	entities.Object
	fileMarker

	Path       fields.Field[string]  `graph:"path"`
	Basename   fields.Field[string]  `graph:"basename"`
	Size       fields.Field[int64]   `graph:"size"`
	Duration   fields.Field[float64] `graph:"duration"`
	Width      fields.Field[int]     `graph:"width"`
	Height     fields.Field[int]     `graph:"height"`
	VideoCodec fields.Field[string]  `graph:"video_codec"`
	AudioCodec fields.Field[string]  `graph:"audio_codec"`
	FrameRate  fields.Field[float64] `graph:"frame_rate"`
	BitRate    fields.Field[int64]   `graph:"bit_rate"`

	ModTime fields.Field[scalars.Timestamp] `graph:"mod_time"`
}

var videoFileDescriptor = &schema.Descriptor{
	TypeName:    "VideoFile",
	UpdateInput: "FileUpdateInput",
	Implements:  []string{baseFileTypeName},
	Tracked:     []string{"path"},
	// File paths are moved server-side through dedicated operations;
	// writing them through an update is refused outright.
	ProtectedFields: []string{"path"},
	ShortRepr:       []string{"basename"},
	Operations: schema.Operations{
		FindByID:    "FindFile",
		FindByIDKey: "findFile",
	},
}

// ImageFile is a still-image asset.
type ImageFile struct {
	entities.Object
	fileMarker

	Path     fields.Field[string] `graph:"path"`
	Basename fields.Field[string] `graph:"basename"`
	Size     fields.Field[int64]  `graph:"size"`
	Width    fields.Field[int]    `graph:"width"`
	Height   fields.Field[int]    `graph:"height"`

	ModTime fields.Field[scalars.Timestamp] `graph:"mod_time"`
}

var imageFileDescriptor = &schema.Descriptor{
	TypeName:        "ImageFile",
	UpdateInput:     "FileUpdateInput",
	Implements:      []string{baseFileTypeName},
	Tracked:         []string{"path"},
	ProtectedFields: []string{"path"},
	ShortRepr:       []string{"basename"},
	Operations: schema.Operations{
		FindByID:    "FindFile",
		FindByIDKey: "findFile",
	},
}

func init() {
	videoFileDescriptor.New = func() types.Entity { return NewVideoFile() }
	imageFileDescriptor.New = func() types.Entity { return NewImageFile() }
	schema.MustRegister(videoFileDescriptor)
	schema.MustRegister(imageFileDescriptor)
}

// NewVideoFile constructs a video file record with a local identity.
func NewVideoFile() *VideoFile {
	f := &VideoFile{}
	entities.Init(f, videoFileDescriptor)
	return f
}

// NewImageFile constructs an image file record with a local identity.
func NewImageFile() *ImageFile {
	f := &ImageFile{}
	entities.Init(f, imageFileDescriptor)
	return f
}
