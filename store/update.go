package store

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/jacentio/socialtable/keys"
)

// maxUpdateAttempts bounds how often Update re-reads the item when its shape
// changed between the read and the write.
const maxUpdateAttempts = 3

// Update applies ops to the item under key and returns the item as stored
// afterwards. The item must exist; Update never creates one.
//
// Key attributes, index attributes and the fields they derive from cannot be
// updated, which keeps every index entry consistent with its item.
func (s *Store) Update(ctx context.Context, key keys.Key, ops Ops) (Item, error) {
	values, err := PrepareOps(s.codec, key, ops)
	if err != nil {
		return nil, err
	}

	for attempt := 1; ; attempt++ {
		current, err := s.Get(ctx, key)
		if err != nil {
			return nil, err
		}

		u := buildUpdate(ops, values, current)
		if len(u.sets) == 0 {
			return current, nil
		}

		out, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
			TableName:                 aws.String(s.config.TableName),
			Key:                       keyAttrs(key),
			UpdateExpression:          aws.String("SET " + strings.Join(u.sets, ", ")),
			ConditionExpression:       aws.String(strings.Join(u.conds, " AND ")),
			ExpressionAttributeNames:  u.names,
			ExpressionAttributeValues: u.values,
			ReturnValues:              types.ReturnValueAllNew,
		})
		if err == nil {
			return out.Attributes, nil
		}

		err = classify("update", err)
		if !errors.Is(err, ErrConditionFailed) || attempt >= maxUpdateAttempts {
			return nil, err
		}
		s.logger.Debug().Str("key", key.String()).Int("attempt", attempt).Msg("item changed during update, retrying")
	}
}

// PrepareOps validates ops for the item under key and marshals their values.
func PrepareOps(codec *keys.Codec, key keys.Key, ops Ops) (map[string]types.AttributeValue, error) {
	if len(ops) == 0 {
		return nil, validationf("update %s: no operations", key)
	}
	kind, _, err := codec.Parse(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValidation, err)
	}

	values := make(map[string]types.AttributeValue, len(ops))
	for name, op := range ops {
		if err := checkUpdatable(kind, name); err != nil {
			return nil, err
		}
		av, err := attributevalue.Marshal(op.Value)
		if err != nil {
			return nil, validationf("update %s: %s: %v", key, name, err)
		}
		if m, ok := av.(*types.AttributeValueMemberM); ok && op.Kind == OpAddOrMerge {
			for k := range m.Value {
				if k == "" || strings.ContainsAny(k, ".[]") {
					return nil, validationf("update %s: %s: invalid map key %q", key, name, k)
				}
			}
		}
		values[name] = av
	}
	return values, nil
}

// ApplyOps returns current with prepared ops applied, without touching the
// table. It is the reference semantics Update realizes with a conditional
// write.
func ApplyOps(current Item, ops Ops, values map[string]types.AttributeValue) Item {
	out := make(Item, len(current)+len(ops))
	for k, v := range current {
		out[k] = v
	}
	for field, op := range ops {
		av := values[field]
		stored, present := out[field]
		if op.Kind == OpReplace || !present {
			out[field] = av
			continue
		}
		incoming, incomingMap := av.(*types.AttributeValueMemberM)
		storedM, storedMap := stored.(*types.AttributeValueMemberM)
		if !incomingMap || !storedMap {
			continue
		}
		merged := make(map[string]types.AttributeValue, len(storedM.Value)+len(incoming.Value))
		for k, v := range storedM.Value {
			merged[k] = v
		}
		for k, v := range incoming.Value {
			merged[k] = v
		}
		out[field] = &types.AttributeValueMemberM{Value: merged}
	}
	return out
}

func checkUpdatable(kind keys.Kind, name string) error {
	switch {
	case name == "" || strings.ContainsAny(name, ".[]"):
		return validationf("invalid attribute name %q", name)
	case keys.IsManaged(name):
		return validationf("attribute %q is managed by the key scheme", name)
	case slices.Contains(keys.Immutable(kind), name):
		return validationf("attribute %q of %s cannot be updated", name, kind)
	}
	return nil
}

// updateExpr accumulates a SET expression with its placeholders.
type updateExpr struct {
	sets   []string
	conds  []string
	names  map[string]string
	values map[string]types.AttributeValue

	placeholders map[string]string
}

func (u *updateExpr) name(attr string) string {
	if p, ok := u.placeholders[attr]; ok {
		return p
	}
	p := fmt.Sprintf("#n%d", len(u.names))
	u.names[p] = attr
	u.placeholders[attr] = p
	return p
}

func (u *updateExpr) value(av types.AttributeValue) string {
	p := fmt.Sprintf(":v%d", len(u.values))
	u.values[p] = av
	return p
}

// buildUpdate renders ops against the current snapshot of the item. Each
// branch that depends on the snapshot adds a condition asserting it, so a
// concurrent change fails the write instead of producing a wrong merge.
func buildUpdate(ops Ops, values map[string]types.AttributeValue, current Item) *updateExpr {
	u := &updateExpr{
		names:        map[string]string{},
		values:       map[string]types.AttributeValue{},
		placeholders: map[string]string{},
	}
	u.conds = append(u.conds, fmt.Sprintf("attribute_exists(%s)", u.name(keys.AttrPK)))

	fields := make([]string, 0, len(ops))
	for f := range ops {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	for _, field := range fields {
		av := values[field]
		n := u.name(field)

		if ops[field].Kind == OpReplace {
			u.sets = append(u.sets, fmt.Sprintf("%s = %s", n, u.value(av)))
			continue
		}

		incoming, incomingMap := av.(*types.AttributeValueMemberM)
		stored, present := current[field]
		_, storedMap := stored.(*types.AttributeValueMemberM)

		switch {
		case !present:
			u.sets = append(u.sets, fmt.Sprintf("%s = %s", n, u.value(av)))
			u.conds = append(u.conds, fmt.Sprintf("attribute_not_exists(%s)", n))
		case incomingMap && storedMap:
			subkeys := make([]string, 0, len(incoming.Value))
			for k := range incoming.Value {
				subkeys = append(subkeys, k)
			}
			sort.Strings(subkeys)
			for _, k := range subkeys {
				u.sets = append(u.sets, fmt.Sprintf("%s.%s = %s", n, u.name(k), u.value(incoming.Value[k])))
			}
			if len(subkeys) > 0 {
				mapType := u.value(&types.AttributeValueMemberS{Value: "M"})
				u.conds = append(u.conds, fmt.Sprintf("attribute_type(%s, %s)", n, mapType))
			}
		default:
			u.sets = append(u.sets, fmt.Sprintf("%s = if_not_exists(%s, %s)", n, n, u.value(av)))
		}
	}
	return u
}
