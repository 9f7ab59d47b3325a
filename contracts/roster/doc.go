/*
Package roster implements Student Roster contract.

The contract keeps a list of students identified by caller-assigned
non-negative integer IDs. It is the authoritative source of the roster: a
student exists only after a registering transaction is accepted by the
chain. The contract does not check who registers or removes students.

# Contract notifications

StudentRegistered notification. This notification is produced when a new
student is added to the roster.

	StudentRegistered:
	  - name: id
	    type: Integer
	  - name: name
	    type: String

StudentRemoved notification. This notification is produced when a student is
deleted from the roster.

	StudentRemoved:
	  - name: id
	    type: Integer
*/
package roster

/*
Contract storage model.

Current conventions:
 <id>: student ID encoded as minimal little-endian integer bytes

# Summary
Key-value storage format:
 - 's<id>' -> std.Serialize(Student)
   registered student

# Students
Contract stores all registered students, one record per ID. The roster is
listed in key order.
*/
