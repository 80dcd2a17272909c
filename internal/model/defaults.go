package model

import "fmt"

const (
	featuresSingle = "AC, TV, WiFi"
	featuresDouble = "AC, TV, WiFi, Mini Bar"
	featuresDeluxe = "AC, TV, WiFi, Mini Bar, Balcony"
	featuresSuite  = "AC, TV, WiFi, Mini Bar, Balcony, Living Room"
)

// DefaultRooms возвращает начальный номерной фонд: 10 Single, 10 Double, 5 Deluxe и 3 Suite.
func DefaultRooms() []Room {
	rooms := make([]Room, 0, 28)
	add := func(floor, count int, t RoomType, capacity int, features string) {
		for i := 1; i <= count; i++ {
			rooms = append(rooms, Room{
				Number:    fmt.Sprintf("R%d%02d", floor, i),
				Type:      t,
				Available: true,
				Capacity:  capacity,
				Features:  features,
			})
		}
	}

	add(1, 10, RoomSingle, 1, featuresSingle)
	add(2, 10, RoomDouble, 2, featuresDouble)
	add(3, 5, RoomDeluxe, 2, featuresDeluxe)
	add(4, 3, RoomSuite, 4, featuresSuite)

	return rooms
}

// DefaultUsers возвращает учётные записи, создаваемые в пустом справочнике.
func DefaultUsers() []User {
	return []User{
		{Username: "admin", Password: "admin123", FullName: "Administrator", Role: RoleAdmin},
		{Username: "staff", Password: "staff123", FullName: "Staff Member", Role: RoleStaff},
	}
}
