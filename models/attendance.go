package models

const AttendancePresent = "present"

// AttendanceRecord is stored at attendance/{employeeId}/{date}.
type AttendanceRecord struct {
	LoginTime string `json:"loginTime"`
	Status    string `json:"status"`
}

type AttendanceEntry struct {
	Date      string `json:"date"`
	LoginTime string `json:"loginTime"`
	Status    string `json:"status"`
}

type AttendanceLogin struct {
	EmployeeID string `json:"employeeId"`
}
