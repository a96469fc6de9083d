package llms

import (
	"encoding/base64"
	"encoding/json"

	"github.com/cockroachdb/errors"
)

// part type tags used in the JSON encoding
const (
	partText         = "text"
	partImageURL     = "image_url"
	partBinary       = "binary"
	partToolCall     = "tool_call"
	partToolResponse = "tool_response"
)

type messageJSON struct {
	Role  Role              `json:"role"`
	Text  string            `json:"text,omitempty"`
	Parts []json.RawMessage `json:"parts,omitempty"`
}

type partJSON struct {
	Type         string            `json:"type"`
	Text         string            `json:"text,omitempty"`
	ImageURL     *ImageURLContent  `json:"image_url,omitempty"`
	Binary       *binaryJSON       `json:"binary,omitempty"`
	ToolCall     *ToolCall         `json:"tool_call,omitempty"`
	ToolResponse *ToolCallResponse `json:"tool_response,omitempty"`
}

type binaryJSON struct {
	Data     string `json:"data"`
	MIMEType string `json:"mime_type"`
}

// MarshalJSON encodes a message with a single text part as {"role","text"},
// otherwise as {"role","parts":[...]} with typed parts.
func (m Message) MarshalJSON() ([]byte, error) {
	if len(m.Parts) == 1 {
		if tc, ok := m.Parts[0].(TextContent); ok {
			return json.Marshal(struct {
				Role Role   `json:"role"`
				Text string `json:"text"`
			}{m.Role, tc.Text})
		}
	}

	parts := make([]partJSON, 0, len(m.Parts))
	for _, p := range m.Parts {
		pj, err := toPartJSON(p)
		if err != nil {
			return nil, err
		}
		parts = append(parts, pj)
	}
	return json.Marshal(struct {
		Role  Role       `json:"role"`
		Parts []partJSON `json:"parts"`
	}{m.Role, parts})
}

// UnmarshalJSON decodes both encodings produced by MarshalJSON.
func (m *Message) UnmarshalJSON(data []byte) error {
	var mj messageJSON
	if err := json.Unmarshal(data, &mj); err != nil {
		return errors.WithStack(err)
	}
	m.Role = mj.Role
	m.Parts = nil
	if len(mj.Parts) == 0 {
		m.Parts = []ContentPart{TextContent{Text: mj.Text}}
		return nil
	}
	for _, raw := range mj.Parts {
		var pj partJSON
		if err := json.Unmarshal(raw, &pj); err != nil {
			return errors.WithStack(err)
		}
		p, err := fromPartJSON(pj)
		if err != nil {
			return err
		}
		m.Parts = append(m.Parts, p)
	}
	return nil
}

func toPartJSON(p ContentPart) (partJSON, error) {
	switch v := p.(type) {
	case TextContent:
		return partJSON{Type: partText, Text: v.Text}, nil
	case ImageURLContent:
		return partJSON{Type: partImageURL, ImageURL: &v}, nil
	case BinaryContent:
		return partJSON{Type: partBinary, Binary: &binaryJSON{
			Data:     base64.StdEncoding.EncodeToString(v.Data),
			MIMEType: v.MIMEType,
		}}, nil
	case ToolCall:
		return partJSON{Type: partToolCall, ToolCall: &v}, nil
	case ToolCallResponse:
		return partJSON{Type: partToolResponse, ToolResponse: &v}, nil
	default:
		return partJSON{}, errors.Newf("unsupported content part: %T", p)
	}
}

func fromPartJSON(pj partJSON) (ContentPart, error) {
	switch pj.Type {
	case partText, "":
		return TextContent{Text: pj.Text}, nil
	case partImageURL:
		if pj.ImageURL == nil || pj.ImageURL.URL == "" {
			return nil, errors.New("image_url field is required for image_url type")
		}
		return *pj.ImageURL, nil
	case partBinary:
		if pj.Binary == nil {
			return nil, errors.New("binary field is required for binary type")
		}
		data, err := base64.StdEncoding.DecodeString(pj.Binary.Data)
		if err != nil {
			return nil, errors.Wrap(err, "failed to decode binary data")
		}
		return BinaryContent{MIMEType: pj.Binary.MIMEType, Data: data}, nil
	case partToolCall:
		if pj.ToolCall == nil {
			return nil, errors.New("tool_call field is required for tool_call type")
		}
		return *pj.ToolCall, nil
	case partToolResponse:
		if pj.ToolResponse == nil {
			return nil, errors.New("tool_response field is required for tool_response type")
		}
		return *pj.ToolResponse, nil
	default:
		return nil, errors.Newf("unknown content type: '%s'", pj.Type)
	}
}
