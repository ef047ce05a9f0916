package terminal

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/eyescreen/screening/internal/domain/registration"
)

// PrintRegistration shows the profile an operator verifies before screening.
func PrintRegistration(out io.Writer, r *registration.Registration) {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "Registration\t#%d (%s)\n", r.ID, r.ReferenceNumber)
	fmt.Fprintf(tw, "Status\t%s\n", r.AttendanceStatus)
	if r.Event != nil {
		fmt.Fprintf(tw, "Event\t%s, %s (%s to %s)\n", r.Event.Name, r.Event.Location, r.Event.StartDate, r.Event.EndDate)
	}
	if p := r.Patient; p != nil {
		fmt.Fprintf(tw, "Patient\t%s\n", p.Name)
		fmt.Fprintf(tw, "Identity no.\t%s\n", p.IdentityNumber)
		fmt.Fprintf(tw, "Date of birth\t%s\n", p.DateOfBirth)
		fmt.Fprintf(tw, "Gender\t%s\n", p.Gender)
		if p.Phone != "" {
			fmt.Fprintf(tw, "Phone\t%s\n", p.Phone)
		}
	}
	tw.Flush()
}

// PrintTable writes rows under header, aligned in columns.
func PrintTable(out io.Writer, header []string, rows [][]string) {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	writeRow(tw, header)
	for _, r := range rows {
		writeRow(tw, r)
	}
	tw.Flush()
}

func writeRow(w io.Writer, cols []string) {
	for i, c := range cols {
		if i > 0 {
			fmt.Fprint(w, "\t")
		}
		fmt.Fprint(w, c)
	}
	fmt.Fprintln(w)
}
