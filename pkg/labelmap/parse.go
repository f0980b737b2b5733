// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package labelmap

import (
	"io"

	"github.com/janpfeifer/must"
	"github.com/pkg/errors"
	"google.golang.org/protobuf/encoding/prototext"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/types/descriptorpb"
	"google.golang.org/protobuf/types/dynamicpb"
)

// labelMapFile describes object_detection/protos/string_int_label_map.proto, used to parse label maps
// with dynamic messages. The id is declared as int64 so that any Item written by Write parses back.
var labelMapFile = &descriptorpb.FileDescriptorProto{
	Name:    proto.String("object_detection/protos/string_int_label_map.proto"),
	Package: proto.String("object_detection.protos"),
	Syntax:  proto.String("proto2"),
	EnumType: []*descriptorpb.EnumDescriptorProto{{
		Name: proto.String("LVISFrequency"),
		Value: []*descriptorpb.EnumValueDescriptorProto{
			{Name: proto.String("UNSPECIFIED_FREQUENCY"), Number: proto.Int32(0)},
			{Name: proto.String("FREQUENT"), Number: proto.Int32(1)},
			{Name: proto.String("COMMON"), Number: proto.Int32(2)},
			{Name: proto.String("RARE"), Number: proto.Int32(3)},
		},
	}},
	MessageType: []*descriptorpb.DescriptorProto{
		{
			Name: proto.String("StringIntLabelMapItem"),
			Field: []*descriptorpb.FieldDescriptorProto{
				optionalField("name", 1, descriptorpb.FieldDescriptorProto_TYPE_STRING, ""),
				optionalField("id", 2, descriptorpb.FieldDescriptorProto_TYPE_INT64, ""),
				optionalField("display_name", 3, descriptorpb.FieldDescriptorProto_TYPE_STRING, ""),
				repeatedField("keypoints", 4, descriptorpb.FieldDescriptorProto_TYPE_MESSAGE,
					".object_detection.protos.StringIntLabelMapItem.KeypointMap"),
				repeatedField("ancestor_ids", 5, descriptorpb.FieldDescriptorProto_TYPE_INT32, ""),
				repeatedField("descendant_ids", 6, descriptorpb.FieldDescriptorProto_TYPE_INT32, ""),
				optionalField("frequency", 7, descriptorpb.FieldDescriptorProto_TYPE_ENUM,
					".object_detection.protos.LVISFrequency"),
				optionalField("instance_count", 8, descriptorpb.FieldDescriptorProto_TYPE_INT32, ""),
			},
			NestedType: []*descriptorpb.DescriptorProto{{
				Name: proto.String("KeypointMap"),
				Field: []*descriptorpb.FieldDescriptorProto{
					optionalField("id", 1, descriptorpb.FieldDescriptorProto_TYPE_INT32, ""),
					optionalField("label", 2, descriptorpb.FieldDescriptorProto_TYPE_STRING, ""),
				},
			}},
		},
		{
			Name: proto.String("StringIntLabelMap"),
			Field: []*descriptorpb.FieldDescriptorProto{
				repeatedField("item", 1, descriptorpb.FieldDescriptorProto_TYPE_MESSAGE,
					".object_detection.protos.StringIntLabelMapItem"),
			},
		},
	},
}

func optionalField(name string, number int32, fieldType descriptorpb.FieldDescriptorProto_Type, typeName string) *descriptorpb.FieldDescriptorProto {
	field := &descriptorpb.FieldDescriptorProto{
		Name:   proto.String(name),
		Number: proto.Int32(number),
		Label:  descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum(),
		Type:   fieldType.Enum(),
	}
	if typeName != "" {
		field.TypeName = proto.String(typeName)
	}
	return field
}

func repeatedField(name string, number int32, fieldType descriptorpb.FieldDescriptorProto_Type, typeName string) *descriptorpb.FieldDescriptorProto {
	field := optionalField(name, number, fieldType, typeName)
	field.Label = descriptorpb.FieldDescriptorProto_LABEL_REPEATED.Enum()
	return field
}

var (
	labelMapDesc = must.M1(protodesc.NewFile(labelMapFile, nil)).Messages().ByName("StringIntLabelMap")
	itemsField   = labelMapDesc.Fields().ByName("item")
	itemDesc     = itemsField.Message()
	idField      = itemDesc.Fields().ByName("id")
	nameField    = itemDesc.Fields().ByName("name")
	displayField = itemDesc.Fields().ByName("display_name")
)

// Parse reads a label map in the protobuf text format of StringIntLabelMap, as written by Write or by
// the TensorFlow object detection tools: single or double-quoted strings with escapes, optional ':' before
// '{' and '#' comments are accepted. The remaining StringIntLabelMapItem fields (keypoints, frequency, ...)
// are parsed and ignored. Every item must have an id.
func Parse(r io.Reader) ([]Item, error) {
	contents, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read label map")
	}
	labelMap := dynamicpb.NewMessage(labelMapDesc)
	if err = prototext.Unmarshal(contents, labelMap); err != nil {
		return nil, errors.Wrap(err, "failed to parse label map")
	}
	list := labelMap.Get(itemsField).List()
	items := make([]Item, 0, list.Len())
	for ii := range list.Len() {
		msg := list.Get(ii).Message()
		item := Item{
			Name:        msg.Get(nameField).String(),
			DisplayName: msg.Get(displayField).String(),
		}
		if !msg.Has(idField) {
			return nil, errors.Errorf("label map item #%d (%q) without an id", ii, item.Name)
		}
		item.ID = msg.Get(idField).Int()
		items = append(items, item)
	}
	return items, nil
}
