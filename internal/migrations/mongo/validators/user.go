package validators

import "go.mongodb.org/mongo-driver/bson"

// UserValidator ties each role to its profile block. The oneOf branches keep
// a patient document from carrying doctor or driver fields and so on.
var UserValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{"_id", "name", "role", "created_at"},
		"properties": bson.M{
			"_id":  bson.M{"bsonType": "string", "minLength": 1, "maxLength": 64},
			"name": bson.M{"bsonType": "string", "minLength": 1, "maxLength": 120},
			"role": bson.M{
				"bsonType": "string",
				"enum":     []string{"patient", "doctor", "driver", "admin"},
			},
			"created_at": bson.M{"bsonType": "date"},
		},
		"oneOf": []bson.M{
			roleVariant("patient", bson.M{"bsonType": "object"}),
			roleVariant("doctor", bson.M{
				"bsonType": "object",
				"required": []string{"consultation_fee"},
				"properties": bson.M{
					"consultation_fee": bson.M{"bsonType": []string{"double", "int", "long", "decimal"}, "minimum": 0},
				},
			}),
			roleVariant("driver", bson.M{
				"bsonType": "object",
				"properties": bson.M{
					"vehicle_number": bson.M{"bsonType": "string", "maxLength": 32},
					"is_online":      bson.M{"bsonType": "bool"},
				},
			}),
			roleVariant("admin", bson.M{"bsonType": "object"}),
		},
	},
}

var roleBlocks = []string{"patient", "doctor", "driver", "admin"}

func roleVariant(role string, block bson.M) bson.M {
	properties := bson.M{
		"role": bson.M{"enum": []string{role}},
		role:   block,
	}
	for _, other := range roleBlocks {
		if other != role {
			properties[other] = bson.M{"not": bson.M{}}
		}
	}
	return bson.M{
		"required":   []string{role},
		"properties": properties,
	}
}
