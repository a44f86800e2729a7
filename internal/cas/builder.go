package cas

import (
	"context"
	"encoding/json"
	"fmt"

	"docforge/internal/fault"
	"docforge/internal/models"
	"docforge/internal/util"

	"github.com/rs/zerolog"
)

type Builder struct {
	store Store
	log   zerolog.Logger
}

func NewBuilder(store Store, log zerolog.Logger) *Builder {
	return &Builder{store: store, log: log}
}

// Build stores every unit of the decomposed document under its cid and
// returns the addressable graph. The root cid covers page cids plus document
// metadata only; the source filename never participates, so byte-identical
// documents under different names share every address.
func (b *Builder) Build(ctx context.Context, decomposed *models.DecomposedContent) (*models.ContentAddressedGraph, error) {
	if decomposed == nil {
		return nil, fault.New(fault.InvalidInput, "nil decomposed content")
	}

	graph := &models.ContentAddressedGraph{
		PageCIDs:   make([]string, 0, len(decomposed.Pages)),
		ContentMap: map[string]string{},
		Metadata:   decomposed.Metadata,
	}

	for i, page := range decomposed.Pages {
		if page.PageNumber != i+1 {
			return nil, fault.New(fault.InvalidInput, "page %d has number %d, expected %d", i, page.PageNumber, i+1)
		}
		prefix := fmt.Sprintf("page:%d", page.PageNumber)

		for j, img := range page.Images {
			cid, err := b.putUnit(ctx, imageUnit(img))
			if err != nil {
				return nil, err
			}
			graph.ContentMap[fmt.Sprintf("%s/image:%d", prefix, j)] = cid
		}
		for j, ann := range page.Annotations {
			cid, err := b.putUnit(ctx, ann)
			if err != nil {
				return nil, err
			}
			graph.ContentMap[fmt.Sprintf("%s/annotation:%d", prefix, j)] = cid
		}

		cid, err := b.putUnit(ctx, page)
		if err != nil {
			return nil, err
		}
		graph.PageCIDs = append(graph.PageCIDs, cid)
		graph.ContentMap[prefix] = cid
	}

	metaCID, err := b.putUnit(ctx, decomposed.Metadata)
	if err != nil {
		return nil, err
	}
	graph.ContentMap["metadata"] = metaCID

	root := struct {
		Metadata map[string]string `json:"metadata"`
		Pages    []string          `json:"pages"`
	}{Metadata: decomposed.Metadata, Pages: graph.PageCIDs}
	rootCID, err := b.putUnit(ctx, root)
	if err != nil {
		return nil, err
	}
	graph.RootCID = rootCID
	graph.ContentMap["root"] = rootCID

	b.log.Debug().Str("root_cid", rootCID).Int("units", len(graph.ContentMap)).Msg("content-addressed graph built")
	return graph, nil
}

// putUnit serializes a unit deterministically (encoding/json emits struct
// fields in declaration order and map keys sorted) and stores it under the
// digest of those bytes.
func (b *Builder) putUnit(ctx context.Context, unit any) (string, error) {
	data, err := json.Marshal(unit)
	if err != nil {
		return "", fault.Wrap(fault.Internal, err, "serialize content unit")
	}
	cid := util.SHA256Hex(data)
	if err := b.store.Put(ctx, cid, data); err != nil {
		return "", fault.Wrap(fault.Unavailable, err, "store content unit %s", cid)
	}
	return cid, nil
}

// imageUnit addresses an image by its pixel payload and shape, not by the
// page it appeared on or its running xref.
func imageUnit(img models.ImageRef) any {
	return struct {
		Width      int    `json:"width"`
		Height     int    `json:"height"`
		ColorSpace string `json:"colorspace"`
		Data       []byte `json:"data"`
	}{img.Width, img.Height, img.ColorSpace, img.Data}
}
